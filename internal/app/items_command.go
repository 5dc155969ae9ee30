package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

const (
	viewAll           = "all"
	viewForSale       = "for-sale"
	viewOfferEligible = "offer-eligible"
	viewOwned         = "owned"
	viewListable      = "listable"
)

func (s *runtimeState) newItemsCommand() *cobra.Command {
	root := &cobra.Command{Use: "items", Aliases: []string{"item"}, Short: "Marketplace item views"}

	var view string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List marketplace items through one of the account views",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			var data any
			switch strings.ToLower(strings.TrimSpace(view)) {
			case viewAll, "":
				items, err := orch.Items(ctx)
				if err != nil {
					return err
				}
				data = presentItems(items)
			case viewForSale:
				views, err := orch.ForSale(ctx)
				if err != nil {
					return err
				}
				data = presentForSale(views)
			case viewOfferEligible:
				views, err := orch.OfferEligible(ctx)
				if err != nil {
					return err
				}
				data = presentOfferEligible(views)
			case viewOwned:
				views, err := orch.Owned(ctx)
				if err != nil {
					return err
				}
				data = presentOwned(views)
			case viewListable:
				views, err := orch.Listable(ctx)
				if err != nil {
					return err
				}
				data = presentListable(views)
			default:
				return clierr.New(clierr.CodeUsage, "--view must be one of all|for-sale|offer-eligible|owned|listable")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
	listCmd.Flags().StringVar(&view, "view", viewAll, "View (all|for-sale|offer-eligible|owned|listable)")

	var showID string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show one marketplace item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(showID)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			item, err := orch.Item(ctx, id)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentItem(item))
		},
	}
	showCmd.Flags().StringVar(&showID, "id", "", "Item id")
	_ = showCmd.MarkFlagRequired("id")

	root.AddCommand(listCmd)
	root.AddCommand(showCmd)
	return root
}
