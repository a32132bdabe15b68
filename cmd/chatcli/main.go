// Command chatcli is the interactive console chatbot. Plain messages go to
// the reply generator; "write a blog about X" requests run the research and
// write pipeline and save the rendered HTML next to the working directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mayadakhatib/langgraph-crewai/chat"
	"github.com/mayadakhatib/langgraph-crewai/config"
	"github.com/mayadakhatib/langgraph-crewai/llm"
	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/tool"
	"github.com/mayadakhatib/langgraph-crewai/writer"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("228"))
	infoStyle  = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Println(errStyle.Render("chatcli: " + err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.SetDefaultLogger(&log.NoOpLogger{})

	gen := buildGenerator(cfg)
	pipeline, err := writer.NewPipeline(buildSearcher(cfg), gen)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Chat Assistant"))
	fmt.Println(infoStyle.Render("Type a message, or 'write a blog about <topic>'."))
	fmt.Println(infoStyle.Render("Commands: history, clear, exit"))
	fmt.Println()

	ctx := context.Background()
	history := []chat.Message{}
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userStyle.Render("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Println(botStyle.Render("Bot: Goodbye!"))
			return nil
		case "history":
			printHistory(history)
			continue
		case "clear":
			history = history[:0]
			fmt.Println(infoStyle.Render("Conversation history cleared."))
			continue
		}

		if topic, ok := blogTopic(input); ok {
			writeBlog(ctx, pipeline, topic)
			continue
		}

		history = append(history, chat.Message{Role: chat.RoleUser, Content: input})
		reply, err := gen.Generate(ctx, history)
		if err != nil {
			fmt.Println(errStyle.Render("Bot: I could not generate a reply: " + err.Error()))
			// Drop the failed turn so retries start clean.
			history = history[:len(history)-1]
			continue
		}
		history = append(history, chat.Message{Role: chat.RoleAssistant, Content: reply})
		fmt.Println(botStyle.Render("Bot: " + reply))
	}

	return scanner.Err()
}

func buildGenerator(cfg config.Config) chat.Generator {
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey != "" {
		return llm.NewOpenAIGenerator(llm.OpenAIOptions{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	}
	return llm.StaticGenerator{}
}

func buildSearcher(cfg config.Config) writer.Searcher {
	if cfg.Search.Backend == "brave" {
		if b, err := tool.NewBraveSearch(cfg.Search.APIKey); err == nil {
			return b
		}
		fmt.Println(infoStyle.Render("Brave search unavailable, using DuckDuckGo."))
	}

	opts := []tool.DuckDuckGoOption{}
	if cfg.Search.MaxResults > 0 {
		opts = append(opts, tool.WithDuckDuckGoMaxResults(cfg.Search.MaxResults))
	}
	return tool.NewDuckDuckGoSearch(opts...)
}

func writeBlog(ctx context.Context, pipeline *writer.Pipeline, topic string) {
	fmt.Println(infoStyle.Render(fmt.Sprintf("Researching and writing about %q...", topic)))

	draft, err := pipeline.Write(ctx, topic)
	if err != nil {
		fmt.Println(errStyle.Render("Bot: Error generating blog post: " + err.Error()))
		return
	}

	fmt.Println(botStyle.Render("Bot:\n" + draft))

	path := "blog_" + slugify(topic) + ".html"
	if err := os.WriteFile(path, []byte(writer.RenderHTML(draft)), 0o644); err != nil {
		fmt.Println(errStyle.Render("Could not save HTML: " + err.Error()))
		return
	}
	fmt.Println(infoStyle.Render("Saved " + path))
}

func printHistory(history []chat.Message) {
	if len(history) == 0 {
		fmt.Println(infoStyle.Render("No conversation history yet."))
		return
	}
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			fmt.Println(userStyle.Render("You: " + m.Content))
		default:
			fmt.Println(botStyle.Render("Bot: " + m.Content))
		}
	}
}

// blogTopic detects blog requests and extracts the topic.
func blogTopic(input string) (string, bool) {
	lower := strings.ToLower(input)
	for _, prefix := range []string{
		"write a blog post about ",
		"write a blog about ",
		"blog about ",
	} {
		if strings.HasPrefix(lower, prefix) {
			topic := strings.TrimSpace(input[len(prefix):])
			if topic != "" {
				return topic, true
			}
		}
	}
	return "", false
}

// slugify turns a topic into a safe file name fragment.
func slugify(topic string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
