// ocb is a CLI client for bots speaking the Open Chatbot protocol.
//
// A bot publishes a descriptor at /.well-known/openchatbot-configuration
// and answers queries on its ask endpoint.
//
// Usage:
//
//	ocb ask <url> <query>          Send one query to a bot
//	ocb chat <url>                 Talk to a bot interactively
//	ocb descriptor <domain>        Show a domain's chatbot descriptor
//	ocb group <file> <query>       Ask every bot listed in a file
//	ocb version                    Show version info
package main

import "github.com/port402/ocb/internal/commands"

func main() {
	commands.Execute()
}
