package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fallback-chat/internal/domain"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		imagePath   string
		historyPath string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the answer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.GenerationRequest{Message: strings.Join(args, " ")}
			if imagePath != "" {
				ref, err := imageDataURL(imagePath)
				if err != nil {
					return err
				}
				req.Image = ref
			}
			if historyPath != "" {
				history, err := readHistory(historyPath)
				if err != nil {
					return err
				}
				req.History = history
			}

			_, a, err := root.load(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Service.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "image file to attach")
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with prior turns ([{\"text\",\"isFromUser\",\"imageRef\"}])")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

// imageDataURL reads a local image into a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("read image: %s is empty", path)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func readHistory(path string) (domain.ConversationHistory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history domain.ConversationHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

func printResult(w io.Writer, res domain.GenerationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"response":  res.ResponseText,
			"source":    res.Source,
			"model":     res.Model,
			"requestId": res.RequestID,
			"failed":    res.Failed,
		})
	}
	if _, err := fmt.Fprintln(w, res.ResponseText); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n[source=%s model=%s request=%s]\n", res.Source, res.Model, res.RequestID)
	return err
}
