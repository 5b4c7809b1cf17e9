package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/sdk"
)

func main() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}

	addr := os.Getenv("CRYSTAL_ADDR")
	if addr == "" {
		addr = "https://localhost:4001"
	}
	requester := crud.Requester{
		CID:      os.Getenv("CRYSTAL_CID"),
		UID:      os.Getenv("CRYSTAL_UID"),
		Username: os.Getenv("CRYSTAL_USERNAME"),
	}

	client, err := sdk.Connect(addr, requester)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}

	command := strings.ToUpper(os.Args[1])
	resource := client.Resource(os.Args[2])
	args := os.Args[3:]

	switch command {
	case "LIST":
		params := url.Values{}
		for _, arg := range args {
			if key, val, ok := strings.Cut(arg, "="); ok {
				params.Set(key, val)
			}
		}
		result, err := resource.List(params)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(map[string]any{"docs": result.Docs, "total": result.Total})

	case "GET":
		if len(args) < 1 {
			log.Fatal("Usage: crystal GET <resource> <id>")
		}
		doc, err := resource.Get(args[0])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(doc)

	case "CREATE":
		if len(args) < 1 {
			log.Fatal("Usage: crystal CREATE <resource> <json>")
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
			log.Fatalf("Invalid JSON body: %v", err)
		}
		id, err := resource.Create(data)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(id)

	case "UPDATE":
		if len(args) < 2 {
			log.Fatal("Usage: crystal UPDATE <resource> <id> <json>")
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
			log.Fatalf("Invalid JSON body: %v", err)
		}
		if err := resource.Update(args[0], data); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "DELETE":
		if len(args) < 1 {
			log.Fatal("Usage: crystal DELETE <resource> <id>")
		}
		if err := resource.Delete(args[0]); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Crystal CLI - Interface for crystal-core")
	fmt.Println("\nUsage:")
	fmt.Println("  crystal LIST <resource> [field=value ...] [page=N] [limit=N] [fields=a,b]")
	fmt.Println("  crystal GET <resource> <id>")
	fmt.Println("  crystal CREATE <resource> <json>")
	fmt.Println("  crystal UPDATE <resource> <id> <json>")
	fmt.Println("  crystal DELETE <resource> <id>")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  CRYSTAL_ADDR        Base URL of the server (default: https://localhost:4001)")
	fmt.Println("  CRYSTAL_CID         Tenant id sent as x-cid")
	fmt.Println("  CRYSTAL_UID         User id sent as x-uid")
	fmt.Println("  CRYSTAL_USERNAME    Username sent as x-username")
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
