package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/filemgr/internal/app"
	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
)

func typesCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{Use: "types", Short: "Manage product types"}

	var req dto.CreateProductTypeRequest
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a product type and create its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return run(cmd, func(ctx context.Context, a *app.App) error {
				typ, err := a.SchemaService.CreateType(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created product type %s (%s)\n", typ.Name, typ.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&req.ID, "id", "", "Product type id (generated when empty)")
	add.Flags().StringVar(&req.Description, "description", "", "Description")
	add.Flags().StringVar(&req.RepositoryPath, "repository", "", "Repository path for product files")
	add.Flags().StringVar(&req.Versioner, "versioner", "", "Versioner class name")
	add.Flags().StringVar(&req.Parent, "parent", "", "Parent product type name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List product types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				types, err := a.SchemaService.ListTypes(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tID\tREPOSITORY")
				for _, t := range types {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.ID, t.RepositoryPath)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func elementsCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{Use: "elements", Short: "Manage metadata elements"}

	var req dto.ElementRequest
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a metadata element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return run(cmd, func(ctx context.Context, a *app.App) error {
				elem, err := a.SchemaService.CreateElement(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created element %s (%s)\n", elem.Name, elem.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&req.ID, "id", "", "Element id (generated when empty)")
	add.Flags().StringVar(&req.DCElement, "dc", "", "Dublin Core element name")
	add.Flags().StringVar(&req.Description, "description", "", "Description")

	var typeName string
	list := &cobra.Command{
		Use:   "list",
		Short: "List elements, optionally those of one product type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				elems := a.SchemaService.ListElements
				if typeName != "" {
					elems = func(ctx context.Context) ([]models.Element, error) {
						return a.SchemaService.TypeElements(ctx, typeName, false)
					}
				}
				out, err := elems(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tID\tDC")
				for _, e := range out {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.ID, e.DCElement)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&typeName, "type", "", "Only elements of this product type, inherited ones included")

	var mapType string
	mapCmd := &cobra.Command{
		Use:   "map ELEMENT...",
		Short: "Map elements, by name, to a product type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				for _, name := range args {
					if _, err := a.SchemaService.MapElement(ctx, mapType, dto.MapElementRequest{ElementName: name}); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "mapped %s to %s\n", name, mapType)
				}
				return nil
			})
		},
	}
	mapCmd.Flags().StringVar(&mapType, "type", "", "Product type name")
	_ = mapCmd.MarkFlagRequired("type")

	cmd.AddCommand(add, list, mapCmd)
	return cmd
}
