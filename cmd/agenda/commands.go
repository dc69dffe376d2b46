package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/agenda/internal/api"
	"github.com/MikeSquared-Agency/agenda/internal/assistant"
	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/config"
	"github.com/MikeSquared-Agency/agenda/internal/hermes"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP chat API",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			logger := setupLogging(cfg.LogLevel, os.Stdout)
			logger.Info("agenda starting", "port", cfg.Port, "backend", cfg.CalendarBackend)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			// Avoid handing the server a typed nil.
			var chat api.Chatter
			if a.assistant != nil {
				chat = a.assistant
			}
			srv := api.NewServer(api.Options{
				Port:          cfg.Port,
				APIToken:      cfg.APIToken,
				DebugPayloads: cfg.DebugPayloads,
				Backend:       cfg.CalendarBackend,
				Translator:    cfg.TranslatorProvider,
			}, chat, logger)

			if err := a.bus.Publish(hermes.SubjectAgentRegistered, hermes.AgentRegistered{
				Agent:      "agenda",
				Port:       cfg.Port,
				Backend:    cfg.CalendarBackend,
				Translator: cfg.TranslatorProvider,
				Timestamp:  time.Now().UTC(),
			}); err != nil {
				logger.Warn("failed to publish registration", "error", err)
			}

			logger.Info("agenda ready", "port", cfg.Port)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.sweep(gctx)
				return nil
			})
			g.Go(func() error {
				if err := srv.Start(gctx); err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("agenda stopped")
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "session id to resume"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			// Logs go to stderr so they don't interleave with the conversation.
			logger := setupLogging(cfg.LogLevel, os.Stderr)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.assistant == nil {
				return errors.New("calendar backend unavailable, check the logs")
			}

			session := c.String("session")
			if session == "" {
				session = uuid.NewString()
			}
			return chatLoop(ctx, a.assistant, session)
		},
	}
}

func chatLoop(ctx context.Context, as *assistant.Assistant, session string) error {
	fmt.Println("Assistente de agenda. Digite 'sair' para encerrar, '/reset' para recomeçar ou '/feedback <correção>'.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "sair" || line == "exit":
			return nil
		case line == "/reset":
			if err := as.Reset(ctx, session); err != nil {
				return err
			}
			fmt.Println("Conversa reiniciada.")
			continue
		case strings.HasPrefix(line, "/feedback"):
			correction := strings.TrimSpace(strings.TrimPrefix(line, "/feedback"))
			if correction == "" {
				fmt.Println("Uso: /feedback <correção>")
				continue
			}
			if _, err := as.SaveFeedback(ctx, session, correction); err != nil {
				fmt.Println("Não foi possível salvar a correção:", err)
				continue
			}
			fmt.Println("Obrigado! Correção registrada.")
			continue
		}

		reply, err := as.HandleMessage(ctx, session, line)
		if err != nil {
			return err
		}
		fmt.Println(reply.Text)
		if reply.EventLink != "" {
			fmt.Println(reply.EventLink)
		}
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize Google Calendar access and store the token",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			oc, err := calendar.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
			if err != nil {
				return err
			}

			authURL := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read authorization code: %w", err)
			}

			tok, err := calendar.ExchangeCode(c.Context, oc, strings.TrimSpace(code))
			if err != nil {
				return err
			}
			if err := calendar.SaveToken(cfg.GoogleTokenFile, tok); err != nil {
				return err
			}
			fmt.Printf("Token saved to %s\n", cfg.GoogleTokenFile)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print agenda events published on NATS",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			logger := setupLogging(cfg.LogLevel, os.Stderr)
			if cfg.NatsURL == "" {
				return errors.New("NATS_URL is required")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			nc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
			if err != nil {
				return err
			}
			defer nc.Close()

			if err := nc.Subscribe(hermes.SubjectAll, func(subject string, data []byte) {
				fmt.Printf("%s %s\n", subject, data)
			}); err != nil {
				return err
			}
			logger.Info("watching", "subject", hermes.SubjectAll)
			<-ctx.Done()
			return nil
		},
	}
}
