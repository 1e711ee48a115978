package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/leadflow"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation on stdin",
	Long:  `Runs a terminal conversation loop. Each line is one message; records complete as you provide their fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		sessionID := leadflow.NewSessionID()
		fmt.Printf("--- leadflow chat (session %s) ---\n", sessionID)
		fmt.Println("Type 'exit' to quit, 'reset' to discard the session.")

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println()
				return nil
			}
			text := strings.TrimSpace(line)

			switch text {
			case "":
				continue
			case "exit", "quit":
				fmt.Println("Bye!")
				return nil
			case "reset":
				a.flow.Reset(sessionID)
				fmt.Println("Session cleared.")
				continue
			}

			reply, err := a.flow.HandleMessage(cmd.Context(), sessionID, text)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
