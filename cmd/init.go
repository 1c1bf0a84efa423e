package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a starter groups configuration",
		Description: `Interactively asks for the chain node endpoint and the first
group's feed endpoints and writes a starter configuration file.

Roles left empty share the main feed endpoint.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/groups.toml",
				Usage:   "Path to write the configuration file to",
				EnvVars: []string{"NFTBBS_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			path := ctx.String("config")

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			apiBase, err := prompt.New().Ask("Chain node API base:").Input("https://node.example.org")
			if err != nil {
				return err
			}
			wakeSocket, err := prompt.New().Ask("Wake socket (optional):").Input("")
			if err != nil {
				return err
			}
			groupID, err := prompt.New().Ask("Group id:").Input("")
			if err != nil {
				return err
			}
			groupName, err := prompt.New().Ask("Group name:").Input("")
			if err != nil {
				return err
			}
			mainFeed, err := prompt.New().Ask("Main feed endpoint:").Input("")
			if err != nil {
				return err
			}
			commentFeed, err := prompt.New().Ask("Comment feed endpoint (empty = main):").Input("")
			if err != nil {
				return err
			}
			counterFeed, err := prompt.New().Ask("Counter feed endpoint (empty = main):").Input("")
			if err != nil {
				return err
			}
			profileFeed, err := prompt.New().Ask("Profile feed endpoint (empty = main):").Input("")
			if err != nil {
				return err
			}

			content := fmt.Sprintf(`[node]
api_base = %q
`, apiBase)
			if wakeSocket != "" {
				content += fmt.Sprintf("wake_socket = %q\n", wakeSocket)
			}
			content += fmt.Sprintf(`
[[groups]]
id = %q
name = %q
main = %q
`, groupID, groupName, mainFeed)
			if commentFeed != "" {
				content += fmt.Sprintf("comment = %q\n", commentFeed)
			}
			if counterFeed != "" {
				content += fmt.Sprintf("counter = %q\n", counterFeed)
			}
			if profileFeed != "" {
				content += fmt.Sprintf("profile = %q\n", profileFeed)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}

			fmt.Println("Wrote", path)
			return nil
		},
	}
}
