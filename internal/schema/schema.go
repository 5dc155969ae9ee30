package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Command annotations read by Build.
const (
	AnnotationMutates = "nftmp/mutates"
	AnnotationWallet  = "nftmp/wallet"
	AnnotationOwner   = "nftmp/owner-only"
)

type CommandSchema struct {
	Path           string          `json:"path"`
	Use            string          `json:"use"`
	Short          string          `json:"short"`
	Aliases        []string        `json:"aliases,omitempty"`
	Mutates        bool            `json:"mutates,omitempty"`
	RequiresWallet bool            `json:"requires_wallet,omitempty"`
	OwnerOnly      bool            `json:"owner_only,omitempty"`
	Flags          []FlagSchema    `json:"flags,omitempty"`
	Subcommands    []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required,omitempty"`
}

// Mark sets an annotation flag on cmd and returns it.
func Mark(cmd *cobra.Command, annotations ...string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	for _, a := range annotations {
		cmd.Annotations[a] = "true"
	}
	return cmd
}

// Has reports whether cmd carries annotation.
func Has(cmd *cobra.Command, annotation string) bool {
	return cmd != nil && cmd.Annotations[annotation] == "true"
}

func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	for _, p := range strings.Fields(strings.TrimSpace(commandPath)) {
		next := findChild(cmd, p)
		if next == nil {
			return CommandSchema{}, fmt.Errorf("command not found: %s", commandPath)
		}
		cmd = next
	}
	return serialize(cmd), nil
}

func findChild(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || slices.Contains(c.Aliases, name) {
			return c
		}
	}
	return nil
}

func serialize(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:           strings.TrimSpace(cmd.CommandPath()),
		Use:            cmd.Use,
		Short:          cmd.Short,
		Aliases:        cmd.Aliases,
		Mutates:        Has(cmd, AnnotationMutates),
		RequiresWallet: Has(cmd, AnnotationWallet),
		OwnerOnly:      Has(cmd, AnnotationOwner),
		Flags:          collectFlags(cmd),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub))
	}
	return s
}

func collectFlags(cmd *cobra.Command) []FlagSchema {
	items := []FlagSchema{}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		items = append(items, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
			Required:  required,
		})
	})
	return items
}
