package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <file|->",
	Short: "Extract skills from a plain-text résumé and save them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return eris.Wrap(err, "read resume")
		}

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		skills, err := env.Resumes.Import(ctx, userID, string(data))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Saved %d skills: %s\n", len(skills), strings.Join(skills, ", "))
		return nil
	},
}

func init() {
	resumeCmd.Flags().String("user", "local", "user id")
	rootCmd.AddCommand(resumeCmd)
}
