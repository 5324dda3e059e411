package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/infrastructure/rest"
	"chat-sync/internal"
	"chat-sync/observability"
	"chat-sync/pushchannel"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/services"
	"chat-sync/ui"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

var errQuit = errors.New("quit requested")

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, engine wiring and the interactive
// loop. Returning instead of exiting keeps defers (cache close, channel
// teardown) reliable and the wiring testable.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.ValidateBackoff(); err != nil {
		return exitConfig, err
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Identity from the credential token.
	identity, err := auth.IdentityFromToken(config.AuthToken)
	if err != nil {
		return exitConfig, err
	}

	// 3. Context tied to termination signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Collaborators: REST client, push transport, attachment cache.
	api := rest.NewClient(config.APIBaseURL, config.HTTPTimeout, log)
	transport := pushchannel.NewWebSocketTransport(config.PushBaseURL)

	cache, err := repositories.NewAttachmentCache(log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing attachment cache...")
		_ = cache.Close()
	}()

	// Prefer the server's view of who we are when reachable.
	if id, username, err := api.Me(ctx, identity.Token); err == nil {
		identity.UserID = id
		identity.Username = username
	} else {
		log.Warn("Falling back to token claims for identity", "error", err)
	}

	// 5. Engine.
	stats := observability.NewStats()
	controller := runtime.NewController(log, api, api, transport, identity, stats,
		runtime.Options{
			BufferSize:      config.BufferSize,
			BackoffMin:      config.ReconnectMin,
			BackoffMax:      config.ReconnectMax,
			RestartInterval: config.RestartInterval,
			MetricInterval:  config.MetricInterval,
		})
	defer controller.Shutdown()

	service := services.NewChatService(controller, api, api, identity)

	if config.DebugPort > 0 {
		internal.StartDebugServer(stats, service.CurrentView, cache, config.DebugPort)
		log.Info("Debug server started", "port", config.DebugPort)
	}

	renderer := ui.NewRenderer(os.Stdout, identity.UserID, true)
	service.Subscribe(func() {
		renderer.RenderView(fmt.Sprintf("room %d", activeRoom(controller)), service.CurrentView())
	})

	if config.DefaultRoomID > 0 {
		if err = service.ActivateRoom(ctx, domain.RoomID(config.DefaultRoomID)); err != nil {
			return exitRuntime, err
		}
	}

	log.Info("Connected", "user", identity.Username,
		"commands", "/rooms, /room <id>, /attach <path>, /edit <id> <text>, /del <id>, /quit")

	// 6. Interactive loop.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := handle(ctx, service, renderer, cache, line); err != nil {
				if errors.Is(err, errQuit) {
					return exitOK, nil
				}
				log.Warn("Command failed", "error", err)
			}
		}
	}
}

func handle(ctx context.Context, service *services.ChatService, renderer *ui.Renderer,
	cache *repositories.AttachmentCache, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return errQuit
	case line == "/rooms":
		rooms, err := service.Rooms(ctx)
		if err != nil {
			return err
		}
		renderer.RenderRooms(rooms)
		return nil
	case strings.HasPrefix(line, "/room "):
		id, err := strconv.ParseInt(strings.TrimPrefix(line, "/room "), 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /room <id>")
		}
		return service.ActivateRoom(ctx, domain.RoomID(id))
	case strings.HasPrefix(line, "/attach "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading attachment: %w", err)
		}
		name := filepath.Base(path)
		// Bytes stay local; only the reference travels with the message.
		if err := cache.Store(name, data); err != nil {
			return err
		}
		return service.Send(name, []domain.Attachment{{FileName: name}})
	case strings.HasPrefix(line, "/edit "):
		parts := strings.SplitN(strings.TrimPrefix(line, "/edit "), " ", 2)
		if len(parts) != 2 {
			return fmt.Errorf("usage: /edit <id> <text>")
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /edit <id> <text>")
		}
		return service.Edit(ctx, domain.MessageID(id), parts[1])
	case strings.HasPrefix(line, "/del "):
		id, err := strconv.ParseInt(strings.TrimPrefix(line, "/del "), 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /del <id>")
		}
		return service.Delete(ctx, domain.MessageID(id))
	default:
		return service.Send(line, nil)
	}
}

func activeRoom(controller *runtime.Controller) domain.RoomID {
	if store := controller.Store(); store != nil {
		return store.Room()
	}
	return 0
}
