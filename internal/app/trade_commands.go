package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/nftmp-cli/internal/amount"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/schema"
)

func (s *runtimeState) newBuyCommand() *cobra.Command {
	var itemID string
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a priced item at its listed price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(itemID)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.Buy(ctx, id)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	cmd.Flags().StringVar(&itemID, "id", "", "Item id")
	_ = cmd.MarkFlagRequired("id")
	return schema.Mark(cmd, schema.AnnotationMutates, schema.AnnotationWallet)
}

func (s *runtimeState) newSellCommand() *cobra.Command {
	var itemID, priceWei, priceETH string
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Put an owned item up for sale at a fixed price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := marketplace.ParseItemID(itemID)
			if err != nil {
				return err
			}
			price, err := amount.Normalize(priceWei, priceETH)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.ListForSale(ctx, id, price)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	cmd.Flags().StringVar(&itemID, "id", "", "Item id")
	cmd.Flags().StringVar(&priceWei, "price", "", "Price in wei")
	cmd.Flags().StringVar(&priceETH, "price-eth", "", "Price in ether, e.g. 0.25")
	_ = cmd.MarkFlagRequired("id")
	cmd.MarkFlagsMutuallyExclusive("price", "price-eth")
	return schema.Mark(cmd, schema.AnnotationMutates, schema.AnnotationWallet)
}

func (s *runtimeState) newAddCommand() *cobra.Command {
	var collection, token string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a held token of an owned collection with the marketplace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenID, err := marketplace.ParseTokenID(token)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			orch, err := s.orchestrator(ctx, cmd)
			if err != nil {
				return err
			}
			receipt, err := orch.AddToMarketplace(ctx, collection, tokenID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentReceipt(receipt))
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection address")
	cmd.Flags().StringVar(&token, "token-id", "", "Token id")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("token-id")
	return schema.Mark(cmd, schema.AnnotationMutates, schema.AnnotationWallet)
}
