package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/bugsnag/bugsnag-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/couriernet/courier"
	"github.com/couriernet/courier/types"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}

	httpAddrPtr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8475"), "http server address")
	ownerPtr := flag.String("owner", getEnv("COURIER_OWNER", ""), "protocol owner address (required)")
	feePtr := flag.Uint64("fee", getEnvUint(getEnv("COURIER_FEE", "0")), "fixed per-message fee")
	archivePtr := flag.String("archive", getEnv("COURIER_ARCHIVE", "courier.db"), "sqlite event archive path, empty to disable")
	seedPtr := flag.String("signing-seed", getEnv("COURIER_SEED", ""), "base64 event-signing seed, empty to generate")
	mqttHostPtr := flag.String("mqtt-host", getEnv("MQTT_HOST", ""), "mqtt broker for event publication, empty to disable")
	mqttUserPtr := flag.String("mqtt-user", getEnv("MQTT_USER", ""), "mqtt username")
	mqttPassPtr := flag.String("mqtt-pass", getEnv("MQTT_PASS", ""), "mqtt password")
	showStatsPtr := flag.Bool("show-stats", false, "print a stats table periodically")
	refreshRatePtr := flag.Int("refresh-rate", 600, "refresh rate in seconds for the stats table")
	verbosePtr := flag.Bool("verbose", false, "log debug stuff")

	flag.Parse()

	if *verbosePtr {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if apiKey := os.Getenv("BUGSNAG_API_KEY"); apiKey != "" {
		bugsnag.Configure(bugsnag.Configuration{
			APIKey:          apiKey,
			ProjectPackages: []string{"main", "github.com/couriernet/courier"},
		})
	}

	if *ownerPtr == "" {
		logrus.Fatal("owner address is required (-owner or COURIER_OWNER)")
	}

	signer, publicKey := buildSigner(*seedPtr)

	core := courier.New(courier.Config{
		Owner:      types.Address(*ownerPtr),
		MessageFee: *feePtr,
		Signer:     signer,
	})

	if *archivePtr != "" {
		archive, err := courier.OpenEventArchive(*archivePtr)
		if err != nil {
			logrus.Fatalf("failed to open event archive: %v", err)
		}
		defer archive.Close()

		events, err := archive.Load()
		if err != nil {
			logrus.Fatalf("failed to load event archive: %v", err)
		}
		core.Replay(events)
		archive.Run(core.Events())
		logrus.Infof("💾 event archive at %s", *archivePtr)
	}

	if *mqttHostPtr != "" {
		publisher := courier.NewEventPublisher(*mqttHostPtr, *mqttUserPtr, *mqttPassPtr, "courier-"+*ownerPtr)
		if err := publisher.Run(core.Events()); err != nil {
			logrus.Warnf("mqtt publisher disabled: %v", err)
		} else {
			defer publisher.Stop()
		}
	}

	if *showStatsPtr {
		go printStatsForever(core, *refreshRatePtr)
	}

	server := courier.NewHTTPServer(core, publicKey)
	if err := server.Start(*httpAddrPtr); err != nil {
		logrus.Fatalf("server failed: %v", err)
	}
}

func buildSigner(seed string) (*courier.Signer, string) {
	if seed != "" {
		signer, err := courier.LoadSigner(seed)
		if err != nil {
			logrus.Fatalf("invalid signing seed: %v", err)
		}
		return signer, signer.PublicKeyB64()
	}
	signer, err := courier.NewSigner()
	if err != nil {
		logrus.Fatalf("failed to generate signing key: %v", err)
	}
	logrus.Infof("🔑 event signing key: %s", signer.PublicKeyB64())
	return signer, signer.PublicKeyB64()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvUint(value string) uint64 {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
