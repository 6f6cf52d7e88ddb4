package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/filemgr/internal/app"
	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/export"
)

// Output formats accepted by --output-format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

func ingestCommand(run runner) *cobra.Command {
	var (
		req  dto.IngestRequest
		refs []string
		meta []string
	)
	cmd := &cobra.Command{
		Use:   "ingest NAME",
		Short: "Catalog a product with its references and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			req.Metadata = md
			for _, ref := range refs {
				req.References = append(req.References, models.Reference{OrigReference: ref})
			}
			return run(cmd, func(ctx context.Context, a *app.App) error {
				product, err := a.CatalogService.Ingest(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), product.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.ProductType, "type", "", "Product type name")
	cmd.Flags().StringVar(&req.ID, "id", "", "Product id (generated when empty)")
	cmd.Flags().StringArrayVar(&refs, "ref", nil, "Original file reference, repeatable")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata as KEY=VALUE, repeatable")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// parseMetadata turns KEY=VALUE pairs into metadata, keeping first-seen key
// order and appending repeated keys.
func parseMetadata(pairs []string) (*models.Metadata, error) {
	md := models.NewMetadata()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid metadata %q, want KEY=VALUE", pair)
		}
		md.Add(strings.TrimSpace(key), value)
	}
	return md, nil
}

func queryCommand(run runner) *cobra.Command {
	var (
		typeName  string
		expr      string
		page      int
		format    string
		delimiter string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a catalog query and print the matching products",
		Long: `Run a catalog query against one product type.

With --page the command prints that page of products, newest first.
Without it every matching product id is printed.

Examples:
  filemgr-admin query --type GenericFile --expr "Filename == 'a.txt'"
  filemgr-admin query --type GenericFile --expr "FileSize > '100'" --page 2 --output-format csv --delimiter tab`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case formatTable, formatJSON, formatCSV:
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			comma, err := export.ParseDelimiter(delimiter)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app.App) error {
				if page <= 0 {
					ids, err := a.CatalogService.QueryIDs(ctx, typeName, expr)
					if err != nil {
						return err
					}
					if format == formatJSON {
						return writeJSON(cmd.OutOrStdout(), dto.QueryResponse{ProductType: typeName, Query: expr, ProductIDs: ids})
					}
					for _, id := range ids {
						fmt.Fprintln(cmd.OutOrStdout(), id)
					}
					return nil
				}

				result, err := a.CatalogService.PagedQuery(ctx, typeName, expr, page)
				if err != nil {
					return err
				}
				return printPage(cmd, result, format, comma)
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "Product type name")
	cmd.Flags().StringVar(&expr, "expr", "", "Query expression; empty matches every product")
	cmd.Flags().IntVar(&page, "page", 0, "Page number; 0 prints all matching ids")
	cmd.Flags().StringVarP(&format, "output-format", "o", formatTable, "Output format: table, json or csv")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV delimiter: comma, tab, semicolon, pipe or a single character")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func printPage(cmd *cobra.Command, page *models.ProductPage, format string, comma rune) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		return writeJSON(out, page)
	case formatCSV:
		data := export.Dataset{Headers: []string{"ProductId", "ProductName", "ProductReceivedTime", "TransferStatus"}}
		for _, p := range page.Products {
			data.Rows = append(data.Rows, map[string]string{
				"ProductId":           p.ID,
				"ProductName":         p.Name,
				"ProductReceivedTime": p.ReceivedAt.UTC().Format(time.RFC3339),
				"TransferStatus":      string(p.TransferStatus),
			})
		}
		body, err := export.NewCSVExporter().RenderDelimited(data, comma)
		if err != nil {
			return err
		}
		_, err = out.Write(body)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRECEIVED\tSTATUS")
	for _, p := range page.Products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.ReceivedAt.UTC().Format(time.RFC3339), p.TransferStatus)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d of %d, %d hit(s)\n", page.PageNum, page.TotalPages, page.NumOfHits)
	return nil
}
