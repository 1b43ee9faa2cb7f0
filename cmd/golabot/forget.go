package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	forgetYes  bool
	amnesiaYes bool
)

func init() {
	forgetCmd.Flags().BoolVarP(&forgetYes, "yes", "y", false, "skip the confirmation prompt")
	amnesiaCmd.Flags().BoolVarP(&amnesiaYes, "yes", "y", false, "skip the confirmation prompt")
}

func confirm(prompt string) bool {
	fmt.Print(prompt + " Type 'yes' to continue: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Erase the conversation history",
	Long: `Forget deletes every stored message, giving the bot a clean
conversational slate. Memories, settings, the owner binding and
scheduled tasks are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !forgetYes && !confirm("This erases the whole conversation history.") {
			fmt.Println("Aborted.")
			return nil
		}

		rt, err := newRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.DeleteAllMessages(cmd.Context()); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		fmt.Println("Conversation history erased.")
		return nil
	},
}

var amnesiaCmd = &cobra.Command{
	Use:   "amnesia",
	Short: "Erase all messages, memories and settings",
	Long: `Amnesia wipes the bot's entire state: every stored message, every
memory, and all settings including the owner binding. Scheduled tasks
and their execution logs are kept. The next person to message the bot
becomes its new owner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !amnesiaYes && !confirm("This erases ALL messages, memories and settings.") {
			fmt.Println("Aborted.")
			return nil
		}

		rt, err := newRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		if err := rt.store.DeleteAllMessages(ctx); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := rt.store.DeleteAllMemories(ctx); err != nil {
			return fmt.Errorf("delete memories: %w", err)
		}
		if err := rt.store.Settings().Reset(ctx); err != nil {
			return fmt.Errorf("reset settings: %w", err)
		}

		fmt.Println("All messages, memories and settings erased.")
		return nil
	},
}
