package main

import (
	"log"
	"os"

	_ "github.com/viant/scy/kms/blowfish"

	"github.com/aegisnetinc/touchstone-mcp/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
