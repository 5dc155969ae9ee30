package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/model"
	"github.com/ggonzalez94/nftmp-cli/internal/schema"
)

func (s *runtimeState) newCollectionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "collections", Aliases: []string{"collection"}, Short: "NFT collection workflows"}

	var owned bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List collections registered with the marketplace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			if owned {
				views, err := orch.OwnedCollections(ctx)
				if err != nil {
					return err
				}
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentCollectionViews(views))
			}
			cols, err := orch.Collections(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentCollections(cols))
		},
	}
	listCmd.Flags().BoolVar(&owned, "owned", false, "Only collections owned by the account")

	var name, symbol string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy a new collection owned by the wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			col, receipt, err := orch.CreateCollection(ctx, name, symbol)
			if err != nil {
				return err
			}
			out := presentReceipt(receipt)
			c := presentCollection(col)
			out.Collection = &c
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), out)
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Collection name")
	createCmd.Flags().StringVar(&symbol, "symbol", "", "Collection symbol")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("symbol")

	var collection string
	addableCmd := &cobra.Command{
		Use:   "addable",
		Short: "List held tokens of a collection not yet on the marketplace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			views, err := orch.Addable(ctx, collection)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentAddable(views))
		},
	}
	addableCmd.Flags().StringVar(&collection, "collection", "", "Collection address")
	_ = addableCmd.MarkFlagRequired("collection")

	root.AddCommand(listCmd)
	root.AddCommand(schema.Mark(createCmd, schema.AnnotationMutates, schema.AnnotationWallet))
	root.AddCommand(addableCmd)
	return root
}

func (s *runtimeState) newMintCommand() *cobra.Command {
	var req marketplace.MintRequest
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Pin metadata to IPFS and mint a token into an owned collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.Mint(ctx, req)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	cmd.Flags().StringVar(&req.Collection, "collection", "", "Collection address")
	cmd.Flags().StringVar(&req.Name, "name", "", "Token name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Token description")
	cmd.Flags().StringVar(&req.Image, "image", "", "Image URI or path to a local file")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("name")
	return schema.Mark(cmd, schema.AnnotationMutates, schema.AnnotationWallet)
}

func (s *runtimeState) newMarketCommand() *cobra.Command {
	root := &cobra.Command{Use: "market", Short: "Marketplace owner operations"}

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the marketplace balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			balance, err := orch.MarketplaceBalance(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.Balance{
				Marketplace: s.settings.Marketplace,
				BalanceWei:  wei(balance),
				BalanceETH:  ether(balance),
			})
		},
	}

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw the marketplace balance to its owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.Withdraw(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}

	root.AddCommand(schema.Mark(balanceCmd, schema.AnnotationOwner))
	root.AddCommand(schema.Mark(withdrawCmd, schema.AnnotationMutates, schema.AnnotationWallet, schema.AnnotationOwner))
	return root
}
