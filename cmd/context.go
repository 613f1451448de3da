package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	contextDir      = "./.tmp"
	contextFileName = "context"
)

var userFlag string

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())

	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "acting user, defaults to the saved context")
}

// Context is the acting identity saved between cli calls.
type Context struct {
	User string `json:"user" mapstructure:"user"`
}

// saves the context info to ./.tmp/context.yml
func setContextCommand() *cobra.Command {
	var user string
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if user == "" {
				color.Red(`missing: --as`)
				return
			}

			if err := writeContext(Context{User: user}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVar(&user, "as", "", "user to act as")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			if ctx.User == "" {
				color.Yellow("no context set")
				return
			}
			fmt.Println("user:", ctx.User)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeContext(Context{}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context cleared")
		},
	}

	return command
}

func contextViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(contextFileName)
	v.AddConfigPath(contextDir)
	v.SetConfigType("yml")
	return v
}

func writeContext(context Context) error {
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return err
	}

	v := contextViper()
	v.Set("context", context)

	return v.WriteConfigAs(contextDir + "/" + contextFileName + ".yml")
}

func readContext() Context {
	var ctx Context

	v := contextViper()
	if err := v.ReadInConfig(); err != nil {
		return ctx
	}

	if err := v.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}

	return ctx
}

// actingUser returns the --user flag or the saved context user.
func actingUser() (string, bool) {
	user := userFlag
	if user == "" {
		user = readContext().User
	}
	if user == "" {
		color.Red("missing: --user (or run `tmpl context set --as <user>`)")
		return "", false
	}

	return user, true
}
