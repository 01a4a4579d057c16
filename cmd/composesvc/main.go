// composesvc runs the host service: an HTTP action registry loaded
// from a bbolt-backed document store, with a websocket firehose and
// an optional MQTT relay, the way sheens' cmd/mservice runs a crew of
// machines behind a single flag-configured process.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/yarikc/composer/deploy/store/boltstore"
	"github.com/yarikc/composer/host"
	"github.com/yarikc/composer/interpreters"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		bind       = flag.String("bind", "", "override the config's bind address")
	)
	flag.Parse()

	cfg := host.DefaultConfig()
	if *configPath != "" {
		loaded, err := host.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	if *bind != "" {
		cfg.Bind = *bind
	}

	st, err := boltstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	fh := host.NewFirehose()
	registry, err := host.NewRegistry(st, interpreters.Standard(), fh)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.MQTTBroker != "" {
		pub, err := host.DialMQTT(cfg.MQTTBroker, cfg.MQTTTopic, "composesvc")
		if err != nil {
			log.Fatal(err)
		}
		defer pub.Close()
		go pub.Run(fh)
	}

	mux := http.NewServeMux()
	mux.Handle("/", host.NewServer(registry).Handler())
	mux.HandleFunc("/firehose", host.FirehoseWebSocket(fh))

	log.Println("composesvc listening on", cfg.Bind)
	log.Fatal(http.ListenAndServe(cfg.Bind, mux))
}
