package host

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FirehoseWebSocket upgrades each incoming connection to a websocket
// and streams every Firehose Event to it as JSON, one message per
// Event, until the connection drops.
func FirehoseWebSocket(fh *Firehose) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("host: websocket upgrade:", err)
			return
		}
		defer conn.Close()

		ch := fh.Subscribe()
		defer fh.Unsubscribe(ch)

		for event := range ch {
			bs, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, bs); err != nil {
				return
			}
		}
	}
}
