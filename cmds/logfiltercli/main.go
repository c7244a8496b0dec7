package main

import (
	"github.com/sirupsen/logrus"
	"github.com/tierklinik-dobersberg/apis/pkg/cli"
	"github.com/tierklinik-dobersberg/logfilter-service/cmds/logfiltercli/cmds"
)

func main() {
	root := cli.New("logfiltercli")

	root.AddCommand(
		cmds.TokensCommand(root),
		cmds.ParseCommand(root),
		cmds.ToggleCommand(root),
		cmds.GrepCommand(root),
		cmds.RemoteCommand(root),
	)

	if err := root.Execute(); err != nil {
		logrus.Fatal(err.Error())
	}
}
