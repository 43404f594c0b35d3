package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/guruji-chat/internal/backend"
)

func newKBCmd() *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
	}

	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			kbs, err := a.client.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			for _, kb := range backend.FilterKnowledgeBases(kbs, filter) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", kb.ID, kb.KBName, kb.VectorStore, kb.ChunkingStrategy)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "", "only names containing this text")

	var req backend.KnowledgeBaseRequest
	var fileTypes string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a knowledge base and queue its ingest job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			req.KBName = args[0]
			for _, ft := range strings.Split(fileTypes, ",") {
				if ft = strings.TrimSpace(ft); ft != "" {
					req.AllowedFileTypes = append(req.AllowedFileTypes, ft)
				}
			}
			out, err := a.client.CreateKnowledgeBase(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (kb %s, job %s)\n", out.Message, out.KBID, out.JobID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&req.VectorStore, "vector-store", "chroma", "vector store")
	createCmd.Flags().StringVar(&fileTypes, "file-types", "pdf,txt", "comma separated allowed file types")
	createCmd.Flags().StringVar(&req.ParsingLibrary, "parser", "pypdf", "parsing library")
	createCmd.Flags().StringVar(&req.ChunkingStrategy, "chunking", "recursive", "chunking strategy")
	createCmd.Flags().IntVar(&req.ChunkSize, "chunk-size", 1000, "chunk size")
	createCmd.Flags().IntVar(&req.ChunkOverlap, "chunk-overlap", 200, "chunk overlap")
	createCmd.Flags().StringVar(&req.MetadataStrategy, "metadata", "default", "metadata strategy")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.client.DeleteKnowledgeBase(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	kbCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return kbCmd
}
