package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"studymate/internal/config"
)

// material mirrors the server's upload/materials response shape.
type material struct {
	SourceType    string `json:"source_type"`
	SourceID      string `json:"source_id"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	AddedAt       string `json:"added_at"`
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a study material into the current session",
	Long: `Upload a study material into the current session.

Documents (pdf, docx, pptx, txt) and audio recordings are sent as files;
YouTube videos are referenced by URL and their captions fetched server-side.

Examples:
  studymate upload --file ./lecture.pdf
  studymate upload --file ./seminar.mp3
  studymate upload --youtube https://www.youtube.com/watch?v=dQw4w9WgXcQ`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		youtube, _ := cmd.Flags().GetString("youtube")

		if (file == "") == (youtube == "") {
			return fmt.Errorf("exactly one of --file or --youtube is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var resp *http.Response
		if youtube != "" {
			printStep("Fetching captions for %s...", youtube)
			resp, err = client.post(cmd.Context(), "/upload", map[string]string{"youtube_url": youtube})
		} else {
			printStep("Uploading %s...", file)
			resp, err = client.postFile(cmd.Context(), "/upload", file)
		}
		if err != nil {
			return err
		}

		var m material
		if err := decodeJSON(resp, &m); err != nil {
			return err
		}

		printSuccess("Indexed %s %s (%d chunks)", m.SourceType, m.SourceID, m.ChunkCount)
		if m.EmbeddedCount < m.ChunkCount {
			printWarning("only %d of %d chunks embedded; answers may miss some content", m.EmbeddedCount, m.ChunkCount)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("file", "", "path to a document or audio file")
	uploadCmd.Flags().String("youtube", "", "YouTube video URL")
}

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question grounded in the session's materials",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/query", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var ans struct {
			Answer  string `json:"answer"`
			Sources []struct {
				SourceType string  `json:"source_type"`
				SourceID   string  `json:"source_id"`
				Score      float32 `json:"score"`
			} `json:"sources"`
		}
		if err := decodeJSON(resp, &ans); err != nil {
			return err
		}

		fmt.Println(ans.Answer)
		if len(ans.Sources) > 0 {
			fmt.Println()
			fmt.Println(colorize(colorBold, "Sources:"))
			for _, s := range ans.Sources {
				fmt.Printf("  [%s:%s] score %.3f\n", s.SourceType, s.SourceID, s.Score)
			}
		}
		return nil
	},
}

// --- mcq ---

var mcqCmd = &cobra.Command{
	Use:   "mcq",
	Short: "Generate multiple-choice questions from the session's materials",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/generate/mcq", map[string]any{
			"topic":      topic,
			"difficulty": difficulty,
			"count":      count,
		})
		if err != nil {
			return err
		}

		var result struct {
			Questions []struct {
				Question string   `json:"question"`
				Options  []string `json:"options"`
				Answer   string   `json:"answer"`
			} `json:"questions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for i, q := range result.Questions {
			fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("Q%d.", i+1)), q.Question)
			for j, opt := range q.Options {
				fmt.Printf("  %c) %s\n", 'A'+j, opt)
			}
			fmt.Printf("  %s %s\n", colorize(colorGreen, "Answer:"), q.Answer)
		}
		return nil
	},
}

// --- flashcards ---

var flashcardsCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Generate flashcards from the session's materials",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/generate/flashcards", map[string]any{
			"topic": topic,
			"count": count,
		})
		if err != nil {
			return err
		}

		var result struct {
			Flashcards []struct {
				Question string `json:"question"`
				Answer   string `json:"answer"`
			} `json:"flashcards"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for i, card := range result.Flashcards {
			fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("Card %d:", i+1)), card.Question)
			fmt.Printf("  %s\n", card.Answer)
		}
		return nil
	},
}

func init() {
	mcqCmd.Flags().String("topic", "", "focus generation on a topic")
	mcqCmd.Flags().String("difficulty", "", "question difficulty, e.g. easy or hard")
	mcqCmd.Flags().Int("count", 5, "number of questions to generate")
	flashcardsCmd.Flags().String("topic", "", "focus generation on a topic")
	flashcardsCmd.Flags().Int("count", 5, "number of flashcards to generate")
}

// --- materials ---

var materialsCmd = &cobra.Command{
	Use:   "materials",
	Short: "List the session's uploaded materials",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/materials")
		if err != nil {
			return err
		}

		var result struct {
			Materials []material `json:"materials"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Materials) == 0 {
			fmt.Println("No materials uploaded yet.")
			return nil
		}

		for _, m := range result.Materials {
			fmt.Printf("%s  %s  %d chunks  %s\n",
				colorize(colorCyan, m.SourceType),
				m.SourceID,
				m.ChunkCount,
				m.AddedAt,
			)
		}
		return nil
	},
}

// --- transcript ---

var transcriptCmd = &cobra.Command{
	Use:   "transcript <type> <id>",
	Short: "Print the stored transcript of a material",
	Long: `Print the stored transcript of a material.

The type and id are as shown by "studymate materials", e.g.:
  studymate transcript youtube dQw4w9WgXcQ
  studymate transcript document lecture.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceType, sourceID := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/transcript/%s/%s", url.PathEscape(sourceType), url.PathEscape(sourceID))
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Transcript string `json:"transcript"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Transcript)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
