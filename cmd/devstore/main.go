// Command devstore is a command line front end for the devstore SDK,
// mainly useful for poking the API during development.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	devstore "github.com/momo-AUX1/DevstoreSDK"
)

var (
	apiURL     string
	packageID  string
	userSecret string
	timeout    time.Duration
)

func newClient() *devstore.Client {
	if apiURL != "" {
		return devstore.NewClient(devstore.WithBaseURL(apiURL))
	}
	return devstore.NewClient()
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func main() {
	root := &cobra.Command{
		Use:           "devstore",
		Short:         "Interact with the devstore cloud API",
		Version:       devstore.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "override the API endpoint")
	root.PersistentFlags().StringVarP(&packageID, "package", "p", "", "package identifier")
	root.PersistentFlags().StringVarP(&userSecret, "secret", "s", "", "user secret")
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "per-operation timeout")

	upload := &cobra.Command{
		Use:   "upload <file-or-folder>",
		Short: "Upload a save file or folder as the package's cloud save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			ack, err := newClient().UploadSave(ctx, packageID, userSecret, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Upload successful: %s\n", ack)
			return nil
		},
	}

	download := &cobra.Command{
		Use:   "download <extract-path>",
		Short: "Download the package's cloud save and extract it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			if err := newClient().DownloadSave(ctx, packageID, userSecret, args[0]); err != nil {
				return err
			}
			fmt.Println("Download and extraction successful.")
			return nil
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Show the published version of the package",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			v, err := newClient().PackageVersion(ctx, packageID)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Check devstore availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			state, code, err := newClient().Online(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s (HTTP %d)\n", state, code)
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the username behind the user secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			name, err := newClient().Username(ctx, userSecret)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		},
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Download and extract the latest patch for the package",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			path, err := newClient().DownloadUpdate(ctx, packageID)
			if err != nil {
				return err
			}
			fmt.Printf("Update extracted to %s\n", path)
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the download of the package with the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			if err := newClient().VerifyDownload(ctx, packageID); err != nil {
				return err
			}
			fmt.Println("Download verified successfully.")
			return nil
		},
	}

	notify := &cobra.Command{
		Use:   "notify",
		Short: "Fetch the latest unseen notification for the package",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()
			store, err := devstore.OpenNotificationStore()
			if err != nil {
				return err
			}
			n, err := newClient().CheckNotification(ctx, packageID, store)
			if err != nil {
				if err == devstore.ErrNoNotification {
					fmt.Println("No notification to show.")
					return nil
				}
				return err
			}
			fmt.Printf("%s: %s\n", n.Title, n.Message)
			return nil
		},
	}

	root.AddCommand(upload, download, version, status, whoami, update, verify, notify)

	err := root.Execute()
	devstore.CloseAnalytics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
