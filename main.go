package main

import (
	_ "embed"

	"github.com/rumsystem/nft-bbs-sub001/cmd"

	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers
)

func main() {
	cmd.Execute()
}
