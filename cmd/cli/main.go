package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"reditto/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type essayListResponse struct {
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Items  []models.Essay `json:"items"`
}

type doubtListResponse struct {
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Items  []models.Doubt `json:"items"`
}

func main() {
	global := flag.NewFlagSet("reditto", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 90 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "topics":
		handleTopics(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "essay":
		handleEssay(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "doubt":
		handleDoubt(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "feed":
		handleFeed(*baseURL, *tokenPath, sub, args[2:])
	case "export":
		handleExport(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		name := fs.String("name", "", "full name")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		terms := fs.Bool("accept-terms", false, "accept the terms of use")
		_ = fs.Parse(args)

		if *name == "" || *email == "" || *password == "" {
			log.Fatal("name, email, and password are required")
		}

		payload := map[string]any{
			"name":          *name,
			"email":         *email,
			"password":      *password,
			"termsAccepted": *terms,
		}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ registered and logged in")
	case "logout":
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: reditto auth <login|register|logout>")
	}
}

func handleTopics(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "list", "":
		fs := flag.NewFlagSet("topics list", flag.ExitOnError)
		refresh := fs.Bool("refresh", false, "draw a fresh set of themes")
		_ = fs.Parse(args)

		token := mustToken(tokenPath)
		endpoint := baseURL + "/api/topics"
		if *refresh {
			endpoint += "?refresh=true"
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			log.Fatalf("topics failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: reditto topics list")
	}
}

func handleEssay(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "correct", "analyze":
		fs := flag.NewFlagSet("essay "+sub, flag.ExitOnError)
		file := fs.String("file", "", "path to the essay text file")
		topic := fs.String("topic", "", "essay theme")
		_ = fs.Parse(args)
		if *file == "" || *topic == "" {
			log.Fatal("file and topic are required")
		}

		text, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read essay: %v", err)
		}

		payload := map[string]string{
			"essayText": string(text),
			"topic":     *topic,
		}
		var resp models.CanonicalResult
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/essays/"+sub, token, payload, &resp); err != nil {
			log.Fatalf("%s failed: %v", sub, err)
		}
		printJSON(resp)
	case "list":
		fs := flag.NewFlagSet("essay list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		endpoint := fmt.Sprintf("%s/api/essays?limit=%d&offset=%d", baseURL, *limit, *offset)
		var resp essayListResponse
		if err := doJSON(ctx, client, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("essay show", flag.ExitOnError)
		id := fs.Int64("id", 0, "essay id")
		_ = fs.Parse(args)
		if *id <= 0 {
			log.Fatal("essay id is required")
		}

		var resp models.Essay
		if err := doJSON(ctx, client, http.MethodGet, fmt.Sprintf("%s/api/essays/%d", baseURL, *id), token, nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "delete":
		fs := flag.NewFlagSet("essay delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "essay id")
		_ = fs.Parse(args)
		if *id <= 0 {
			log.Fatal("essay id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, fmt.Sprintf("%s/api/essays/%d", baseURL, *id), token, nil, &resp); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: reditto essay <correct|analyze|list|show|delete>")
	}
}

func handleDoubt(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "ask":
		fs := flag.NewFlagSet("doubt ask", flag.ExitOnError)
		subject := fs.String("subject", "", "school subject")
		text := fs.String("text", "", "the question")
		_ = fs.Parse(args)
		if *subject == "" || *text == "" {
			log.Fatal("subject and text are required")
		}

		payload := map[string]string{
			"subject":   *subject,
			"doubtText": *text,
		}
		var resp models.CanonicalResult
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/doubts", token, payload, &resp); err != nil {
			log.Fatalf("ask failed: %v", err)
		}
		printJSON(resp)
	case "list":
		fs := flag.NewFlagSet("doubt list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		endpoint := fmt.Sprintf("%s/api/doubts?limit=%d&offset=%d", baseURL, *limit, *offset)
		var resp doubtListResponse
		if err := doJSON(ctx, client, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "delete":
		fs := flag.NewFlagSet("doubt delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "doubt id")
		_ = fs.Parse(args)
		if *id <= 0 {
			log.Fatal("doubt id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, fmt.Sprintf("%s/api/doubts/%d", baseURL, *id), token, nil, &resp); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: reditto doubt <ask|list|delete>")
	}
}

func handleFeed(baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "watch":
		fs := flag.NewFlagSet("feed watch", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		token := mustToken(tokenPath)
		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		endpoint += "?token=" + url.QueryEscape(token)
		if err := runWebSocket(endpoint); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	default:
		log.Fatal("usage: reditto feed watch")
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/essays.json", "output JSON path")
		limit := fs.Int("limit", 200, "max essays to export")
		_ = fs.Parse(args)

		items, err := fetchEssays(ctx, client, baseURL, token, *limit)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ exported %d essays to %s", len(items), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/essays.csv", "output CSV path")
		limit := fs.Int("limit", 200, "max essays to export")
		_ = fs.Parse(args)

		items, err := fetchEssays(ctx, client, baseURL, token, *limit)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeCSV(*out, items); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("✅ exported %d essays to %s", len(items), *out)
	default:
		log.Fatal("usage: reditto export <json|csv>")
	}
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func fetchEssays(ctx context.Context, client *http.Client, baseURL, token string, limit int) ([]models.Essay, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var out []models.Essay
	offset := 0
	for len(out) < limit {
		pageSize := 50
		if remaining := limit - len(out); remaining < pageSize {
			pageSize = remaining
		}
		endpoint := fmt.Sprintf("%s/api/essays?limit=%d&offset=%d", baseURL, pageSize, offset)

		var resp essayListResponse
		if err := doJSON(ctx, client, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		out = append(out, resp.Items...)
		offset += len(resp.Items)
	}

	return out, nil
}

func writeJSON(path string, items []models.Essay) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.Essay) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"id", "topic", "final_score", "essay_text", "created_at",
	}); err != nil {
		return err
	}
	for _, item := range items {
		score := ""
		if item.FinalScore != nil {
			score = fmt.Sprintf("%g", *item.FinalScore)
		}
		if err := writer.Write([]string{
			fmt.Sprintf("%d", item.ID),
			item.Topic,
			score,
			item.EssayText,
			item.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.reditto-token.json"
	}
	return filepath.Join(home, ".reditto", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("reditto <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  topics list")
	fmt.Println("  essay correct|analyze|list|show|delete")
	fmt.Println("  doubt ask|list|delete")
	fmt.Println("  feed watch")
	fmt.Println("  export json|csv")
}
