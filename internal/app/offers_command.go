package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/nftmp-cli/internal/amount"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/schema"
)

func (s *runtimeState) newOffersCommand() *cobra.Command {
	root := &cobra.Command{Use: "offers", Aliases: []string{"offer"}, Short: "Offer workflows"}

	var placeID, placeWei, placeETH string
	placeCmd := &cobra.Command{
		Use:   "place",
		Short: "Place an offer on an offer-only item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(placeID)
			if err != nil {
				return err
			}
			value, err := amount.Normalize(placeWei, placeETH)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.PlaceOffer(ctx, id, value)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	placeCmd.Flags().StringVar(&placeID, "id", "", "Item id")
	placeCmd.Flags().StringVar(&placeWei, "amount", "", "Offer amount in wei")
	placeCmd.Flags().StringVar(&placeETH, "amount-eth", "", "Offer amount in ether, e.g. 0.1")
	_ = placeCmd.MarkFlagRequired("id")
	placeCmd.MarkFlagsMutuallyExclusive("amount", "amount-eth")

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List offers awaiting the account's acceptance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			offers, err := orch.PendingOffers(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentOffers(offers))
		},
	}

	mineCmd := &cobra.Command{
		Use:   "mine",
		Short: "List offers the account has placed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			offers, err := orch.MyOffers(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentOffers(offers))
		},
	}

	var acceptID, acceptOfferer string
	acceptCmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept a pending offer on an owned item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(acceptID)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.AcceptOffer(ctx, id, acceptOfferer)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	acceptCmd.Flags().StringVar(&acceptID, "id", "", "Item id")
	acceptCmd.Flags().StringVar(&acceptOfferer, "offerer", "", "Address of the offer to accept")
	_ = acceptCmd.MarkFlagRequired("id")
	_ = acceptCmd.MarkFlagRequired("offerer")

	var claimID string
	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Pay for and take an item whose offer was accepted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(claimID)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.Claim(ctx, id)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	claimCmd.Flags().StringVar(&claimID, "id", "", "Item id")
	_ = claimCmd.MarkFlagRequired("id")

	root.AddCommand(schema.Mark(placeCmd, schema.AnnotationMutates, schema.AnnotationWallet))
	root.AddCommand(pendingCmd)
	root.AddCommand(mineCmd)
	root.AddCommand(schema.Mark(acceptCmd, schema.AnnotationMutates, schema.AnnotationWallet))
	root.AddCommand(schema.Mark(claimCmd, schema.AnnotationMutates, schema.AnnotationWallet))
	return root
}
