package banner

import (
	"fmt"
)

const banner = `
██████╗ ██╗ █████╗ ██╗      ██████╗  ██████╗ ██████╗
██╔══██╗██║██╔══██╗██║     ██╔═══██╗██╔════╝ ██╔══██╗
██║  ██║██║███████║██║     ██║   ██║██║  ███╗██║  ██║
██║  ██║██║██╔══██║██║     ██║   ██║██║   ██║██║  ██║
██████╔╝██║██║  ██║███████╗╚██████╔╝╚██████╔╝██████╔╝
╚═════╝ ╚═╝╚═╝  ╚═╝╚══════╝ ╚═════╝  ╚═════╝ ╚═════╝
`

// Print writes the startup banner with the effective listen address, DB
// path, config sources and version.
func Print(addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/threads - Open the thread for a participant pair (JSON: participants)")
	fmt.Println("GET  /v1/threads - List your threads with unread counts")
	fmt.Println("POST /v1/threads/{id}/messages - Post a message (JSON: text)")
	fmt.Println("GET  /v1/threads/{id}/messages?limit=<n> - List messages, newest first")
	fmt.Println("POST /v1/threads/{id}/messages/read_until - Mark received messages read up to an id")
	fmt.Println("Docs at /docs/, metrics at /metrics")
}
