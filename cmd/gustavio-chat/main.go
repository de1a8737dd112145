// Command gustavio-chat is a minimal terminal frontend over the chat
// engine: it prints every event as it arrives and accepts a small set of
// line commands on stdin to drive it.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/tiago-bitten/gustavio"
)

var (
	appName  = flag.String("app", "gustavio-chat", "data directory / database name")
	username = flag.String("username", "", "set the username immediately on startup")
)

func main() {
	flag.Parse()

	engine, err := gustavio.Open(*appName)
	if err != nil {
		log.Fatalln(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	if *username != "" {
		dispatch(engine, "set_username", map[string]interface{}{"username": *username})
	}

	go printEvents(engine)
	go readCommands(engine)

	<-sig
}

func printEvents(engine *gustavio.Engine) {
	for e := range engine.Events() {
		switch e.Name {
		case gustavio.EventConfigLoaded:
			p := e.Payload.(gustavio.ConfigLoadedPayload)
			fmt.Printf("[config] peer_id=%s username=%q\n", p.PeerID, p.Username)
		case gustavio.EventPeerList:
			fmt.Printf("[peers] %+v\n", e.Payload)
		case gustavio.EventGroupList:
			fmt.Printf("[groups] %+v\n", e.Payload)
		case gustavio.EventIncomingMessage:
			fmt.Printf("[message] %+v\n", e.Payload)
		case gustavio.EventMessageAck:
			fmt.Printf("[ack] %+v\n", e.Payload)
		case gustavio.EventHistory:
			fmt.Printf("[history] %+v\n", e.Payload)
		case gustavio.EventGroupCreated:
			fmt.Printf("[group created] %v\n", e.Payload)
		case gustavio.EventError:
			fmt.Printf("[error] %v\n", e.Payload)
		case gustavio.SignalRequestAttention:
			fmt.Print("\a")
		case gustavio.SignalSetAlwaysOnTop:
			fmt.Printf("[always-on-top] %v\n", e.Payload)
		}
	}
}

// readCommands implements a tiny REPL: "username <name>", "msg <peer_id>
// <text>", "groupmsg <group_id> <text>", "creategroup <name> <member,...>",
// "history <conversation_id>", "peers", "groups".
func readCommands(engine *gustavio.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 3)
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		switch fields[0] {
		case "username":
			if len(fields) < 2 {
				continue
			}
			dispatch(engine, "set_username", map[string]interface{}{"username": fields[1]})
		case "msg":
			if len(fields) < 3 {
				continue
			}
			dispatch(engine, "send_message", map[string]interface{}{"peer_id": fields[1], "content": fields[2]})
		case "groupmsg":
			if len(fields) < 3 {
				continue
			}
			dispatch(engine, "send_group_message", map[string]interface{}{"group_id": fields[1], "content": fields[2]})
		case "creategroup":
			if len(fields) < 3 {
				continue
			}
			dispatch(engine, "create_group", map[string]interface{}{"name": fields[1], "members": strings.Split(fields[2], ",")})
		case "history":
			if len(fields) < 2 {
				continue
			}
			dispatch(engine, "load_history", map[string]interface{}{"conversation_id": fields[1]})
		case "peers":
			dispatch(engine, "get_peers", map[string]interface{}{})
		case "groups":
			dispatch(engine, "get_groups", map[string]interface{}{})
		}
	}
}

// dispatch merges cmd into payload under the "cmd" discriminant key and
// forwards the resulting JSON line to the engine.
func dispatch(engine *gustavio.Engine, cmd string, payload map[string]interface{}) {
	payload["cmd"] = cmd
	data, err := json.Marshal(payload)
	if err != nil {
		log.Println("encode command:", err)
		return
	}
	engine.Dispatch(string(data))
}
