// Command micstream captures microphone audio and streams it through a
// voicewire server, printing the live transcript to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/audio"
	"github.com/voicewire/voicewire/internal/session"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "voicewire server base URL")
	language := flag.String("language", "en", "transcription language tag")
	deviceName := flag.String("device", "", "capture device name substring (default device if empty)")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	showLevel := flag.Bool("level", false, "print an input level bar")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	backend, err := audio.NewMalgoBackend()
	if err != nil {
		log.Fatalf("Failed to initialize audio backend: %v", err)
	}
	defer backend.Close()

	if *listDevices {
		devices, err := backend.Devices()
		if err != nil {
			log.Fatalf("Failed to enumerate capture devices: %v", err)
		}
		if len(devices) == 0 {
			fmt.Println("No capture devices found.")
			return
		}
		for _, d := range devices {
			fmt.Println(d.Name)
		}
		return
	}

	device, err := pickDevice(backend, *deviceName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	mgr := session.New(session.Config{
		ServerURL: *serverURL,
		Language:  *language,
	}, session.EventSink{
		OnStatus: func(s session.Status) {
			fmt.Printf("[%s]\n", s)
		},
		OnTranscript: func(text string, final bool) {
			if final {
				fmt.Printf("\r\x1b[K%s\n", text)
			} else {
				fmt.Printf("\r\x1b[K%s", text)
			}
		},
		OnError: func(msg string) {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		},
	}, logger)

	var onLevel func(float64)
	if *showLevel {
		onLevel = func(l float64) {
			bars := int(l * 400)
			if bars > 40 {
				bars = 40
			}
			fmt.Fprintf(os.Stderr, "\r%-40s", strings.Repeat("#", bars))
		}
	}

	capturer, err := audio.NewCapturer(audio.Config{
		Backend: backend,
		Device:  device,
		OnFrame: func(frame []byte) { mgr.SendAudio(frame) },
		OnLevel: onLevel,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}
	defer capturer.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer mgr.Disconnect()

	if err := capturer.Start(); err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			log.Fatalf("Capture device unavailable: %v", err)
		}
		log.Fatalf("Failed to start capture: %v", err)
	}
	defer capturer.Stop()

	fmt.Println("Streaming microphone audio. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nStopping...")
}

func pickDevice(backend audio.Backend, name string) (*audio.DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}
	needle := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), needle) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", name)
}
