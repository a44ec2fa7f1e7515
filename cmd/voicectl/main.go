package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("voicectl", pflag.ExitOnError)
	serverURL := flags.String("server", "http://localhost:8080", "assistant base URL")
	email := flags.String("email", os.Getenv("HIYA_EMAIL"), "account email")
	password := flags.String("password", os.Getenv("HIYA_PASSWORD"), "account password")
	text := flags.String("text", "", "send one utterance and exit")
	audioFile := flags.String("audio", "", "send one audio file and exit")
	format := flags.String("format", "", "audio format (defaults to the file extension)")
	events := flags.Bool("events", false, "print recorded turns pushed by the server")
	verbose := flags.Bool("verbose", false, "enable verbose logging")

	_ = godotenv.Load()
	flags.Parse(os.Args[1:])

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := NewClient(*serverURL, logger)
	if err := client.Login(ctx, *email, *password); err != nil {
		logger.Fatal("Login failed", zap.Error(err))
	}

	if *events {
		if err := client.WatchEvents(ctx, os.Stdout); err != nil {
			logger.Fatal("Event stream failed", zap.Error(err))
		}
		return
	}

	audioFormat := *format
	if audioFormat == "" && *audioFile != "" {
		audioFormat = formatFromName(*audioFile)
	}

	session, err := client.OpenVoice(audioFormat)
	if err != nil {
		logger.Fatal("Failed to open voice stream", zap.Error(err))
	}
	defer session.Close()

	switch {
	case *audioFile != "":
		data, err := os.ReadFile(*audioFile)
		if err != nil {
			logger.Fatal("Failed to read audio", zap.Error(err))
		}
		reply, err := session.SendAudio(data)
		if err != nil {
			logger.Fatal("Turn failed", zap.Error(err))
		}
		printReply(reply)
	case *text != "":
		reply, err := session.SendText(*text)
		if err != nil {
			logger.Fatal("Turn failed", zap.Error(err))
		}
		printReply(reply)
	default:
		runInteractive(ctx, session, logger)
	}
}

func runInteractive(ctx context.Context, session *VoiceSession, logger *zap.Logger) {
	fmt.Println("Hiya voice console. Type an utterance, or 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return
		}
		reply, err := session.SendText(line)
		if err != nil {
			logger.Error("Turn failed", zap.Error(err))
			return
		}
		printReply(reply)
	}
}

func printReply(r *Reply) {
	if r.Error != "" {
		fmt.Printf("error: %s\n", r.Error)
		return
	}
	if r.Transcript != "" {
		fmt.Printf("you said: %s\n", r.Transcript)
	}
	fmt.Printf("[%s] %s\n", r.State, r.Response.Text)
	if r.Response.AudioRef != "" {
		fmt.Printf("audio: %s\n", r.Response.AudioRef)
	}
}

func formatFromName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return "webm"
}
