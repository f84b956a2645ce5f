package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/websocket"
)

var (
	serverAddr = flag.String("addr", "localhost:12333", "Audio server address")
	token      = flag.String("token", os.Getenv("SPEAKERS_TOKEN"), "Bus token (see --issue-token on the server)")
	siteID     = flag.String("site-id", domain.DefaultSiteID, "Hermes site id")
	sessionID  = flag.String("session-id", "", "Hermes session id")
	devices    = flag.Bool("devices", false, "List output devices instead of playing a file")
	timeout    = flag.Duration("timeout", time.Minute, "How long to wait for the server")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [file.wav]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if !*devices && flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	conn, err := connect()
	if err != nil {
		logger.Fatal("Failed to connect", zap.String("addr", *serverAddr), zap.Error(err))
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(*timeout))

	if *devices {
		err = listDevices(conn, logger)
	} else {
		err = playFile(conn, flag.Arg(0), logger)
	}
	if err != nil {
		logger.Fatal("Request failed", zap.Error(err))
	}
}

func connect() (*gorilla.Conn, error) {
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}

	headers := http.Header{}
	if *token != "" {
		headers.Add("Authorization", "Bearer "+*token)
	}

	conn, _, err := gorilla.DefaultDialer.Dial(u.String(), headers)
	return conn, err
}

func playFile(conn *gorilla.Conn, path string, logger *zap.Logger) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	requestID := uuid.New().String()
	frame, err := websocket.EncodeBinaryFrame(domain.Envelope{
		Topic:     domain.PlayBytesTopic(*siteID, requestID),
		SessionID: *sessionID,
		Payload:   audio,
	})
	if err != nil {
		return err
	}

	if err := conn.WriteMessage(gorilla.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}

	logger.Info("Sent audio",
		zap.String("file", path),
		zap.String("requestID", requestID),
		zap.Int("bytes", len(audio)))

	finishedTopic := domain.PlayFinishedTopic(*siteID)
	var playErr error
	for {
		env, err := readEnvelope(conn)
		if err != nil {
			return err
		}

		switch env.Topic {
		case domain.TopicPlayError:
			var serverErr domain.AudioServerError
			if err := json.Unmarshal(env.Payload, &serverErr); err != nil || serverErr.Context != requestID {
				continue
			}
			playErr = errors.New(serverErr.Error)
			logger.Error("Playback failed", zap.String("error", serverErr.Error))

		case finishedTopic:
			var finished domain.AudioPlayFinished
			if err := json.Unmarshal(env.Payload, &finished); err != nil || finished.ID != requestID {
				continue
			}
			if playErr == nil {
				logger.Info("Playback finished", zap.String("requestID", requestID))
			}
			return playErr
		}
	}
}

func listDevices(conn *gorilla.Conn, logger *zap.Logger) error {
	queryID := uuid.New().String()
	frame, err := websocket.EncodeTextFrame(domain.TopicGetDevices, *sessionID, domain.AudioGetDevices{
		Modes:  []string{"output"},
		ID:     queryID,
		SiteID: *siteID,
	})
	if err != nil {
		return err
	}

	if err := conn.WriteMessage(gorilla.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send query: %w", err)
	}

	for {
		env, err := readEnvelope(conn)
		if err != nil {
			return err
		}

		switch env.Topic {
		case domain.TopicDevicesError:
			var serverErr domain.AudioServerError
			if err := json.Unmarshal(env.Payload, &serverErr); err == nil && serverErr.Context == queryID {
				logger.Warn("Device query reported an error", zap.String("error", serverErr.Error))
			}

		case domain.TopicDevices:
			var response domain.AudioDevices
			if err := json.Unmarshal(env.Payload, &response); err != nil || response.ID != queryID {
				continue
			}
			for _, device := range response.Devices {
				marker := " "
				if device.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %s\t%s\n", marker, device.ID, device.Description)
			}
			return nil
		}
	}
}

func readEnvelope(conn *gorilla.Conn) (domain.Envelope, error) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return domain.Envelope{}, err
		}
		if messageType != gorilla.TextMessage {
			continue
		}
		return websocket.DecodeTextFrame(message)
	}
}
