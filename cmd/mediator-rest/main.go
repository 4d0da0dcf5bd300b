/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the DIDComm mediator REST server.
package main

import (
	"github.com/spf13/cobra"

	"github.com/adorsys/didcomm-mediator-rs-sub002/cmd/mediator-rest/startcmd"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
)

// This is an application which starts the mediator on given port.
func main() {
	rootCmd := &cobra.Command{
		Use: "mediator-rest",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	logger := log.New("didcomm-mediator/mediator-rest")

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run mediator-rest: %s", err)
	}
}
