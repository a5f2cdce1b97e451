package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/internal/client"
	"github.com/campusbite/canteen/internal/feed"
	"github.com/campusbite/canteen/pkg/ws"
)

func apiClient() (*client.Client, error) {
	s, err := client.LoadSession(config.SessionFile())
	if err != nil {
		return nil, err
	}
	return client.New(config.APIURL(), s, &http.Client{Timeout: 15 * time.Second}), nil
}

func signedIn() (*client.Client, error) {
	c, err := apiClient()
	if err != nil {
		return nil, err
	}
	if !c.Session().Active() {
		return nil, client.ErrNotSignedIn
	}
	return c, nil
}

var loginEmail, loginPassword string

// canteen login
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, err := apiClient()
		if err != nil {
			return err
		}
		if loginPassword == "" {
			loginPassword = os.Getenv("CANTEEN_PASSWORD")
		}
		u, err := c.Login(ctx, loginEmail, loginPassword)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (%s)\n", u.Name, u.Role)
		return nil
	},
}

// canteen logout
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		return c.Logout()
	},
}

// listen follows the push stream; onConnect, if set, runs after every
// (re)connect.
func listen(ctx context.Context, c *client.Client, onConnect func()) (<-chan ws.Event, error) {
	u, err := c.StreamURL()
	if err != nil {
		return nil, err
	}
	return ws.Dialer{URL: u, OnConnect: onConnect}.Listen(ctx), nil
}

func printOrders(w io.Writer, orders []models.Order, offset int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tORDER\tSHOP\tSTATUS\tTOTAL\tPLACED")
	for _, o := range orders[offset:] {
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\t%s\n",
			o.TokenNumber, o.ID, o.ShopID, o.Status, o.TotalAmount.StringFixed(2),
			o.CreatedAt.Local().Format("15:04:05"))
	}
	tw.Flush()
}

var watchOffset int

// canteen watch:orders
var watchOrdersCmd = &cobra.Command{
	Use:   "watch:orders",
	Short: "Follow incoming orders across your shops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, err := signedIn()
		if err != nil {
			return err
		}
		pushes, err := listen(ctx, c, nil)
		if err != nil {
			return err
		}

		f := feed.NewOrderFeed(c, config.PollInterval())
		var scrolled sync.Once
		f.OnChange = func(orders []models.Order) {
			scrolled.Do(func() { f.SetOffset(watchOffset) })
			fmt.Printf("\n%s  %d order(s)\n", time.Now().Format("15:04:05"), len(orders))
			printOrders(os.Stdout, orders, f.Offset())
		}
		f.Run(ctx, pushes)
		return nil
	},
}

// canteen watch:shops
var watchShopsCmd = &cobra.Command{
	Use:   "watch:shops",
	Short: "Follow live token counters for every shop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, err := signedIn()
		if err != nil {
			return err
		}
		r := feed.NewShopRegistry(c)
		pushes, err := listen(ctx, c, r.Resync)
		if err != nil {
			return err
		}

		r.OnChange = func(shops []models.Shop) {
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\nSHOP\tCATEGORY\tOPEN\tTOKENS\tWAIT")
			for _, s := range shops {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%dm\n", s.Name, s.Category, !s.Closed, s.ActiveTokens, s.EstimatedWait)
			}
			tw.Flush()
		}
		if err := r.Run(ctx, pushes); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var rejectReason string

// canteen orders:status <id> <status>
var orderStatusCmd = &cobra.Command{
	Use:   "orders:status <id> <status>",
	Short: "Approve, reject or advance an order",
	Long: "Moves an order to the given status. Rejections need --reason, one of: " +
		fmt.Sprint(models.RejectionReasons),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, err := signedIn()
		if err != nil {
			return err
		}
		f := feed.NewOrderFeed(c, 0)
		id, status := args[0], args[1]
		switch status {
		case models.StatusApproved:
			err = f.Approve(ctx, id)
		case models.StatusRejected:
			err = f.Reject(ctx, id, rejectReason)
		default:
			err = f.SetStatus(ctx, id, status)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Order %s is now %s\n", id, status)
		return nil
	},
}

var markRead string

// canteen notifications
var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List your notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, err := signedIn()
		if err != nil {
			return err
		}
		n := feed.NewNotificationFeed(c)
		if markRead != "" {
			if err := n.MarkRead(ctx, markRead); err != nil {
				return err
			}
		}
		if err := n.Refresh(ctx); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, " \tID\tTITLE\tMESSAGE")
		for _, item := range n.Items() {
			mark := "*"
			if item.Read {
				mark = " "
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, item.ID, item.Title, item.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d unread\n", n.Unread())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (or CANTEEN_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("email")

	watchOrdersCmd.Flags().IntVar(&watchOffset, "offset", 0, "rows to skip from the top of the list")
	orderStatusCmd.Flags().StringVar(&rejectReason, "reason", "", "rejection reason")
	notificationsCmd.Flags().StringVar(&markRead, "read", "", "mark this notification read first")
}
