package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/aegisnetinc/touchstone-mcp/auth"
)

// LoginCommand authenticates against Touchstone. By default credentials are
// verified directly and stored locally; with --cloud the command logs into a
// cloud deployment and stores the minted session token instead.
type LoginCommand struct {
	Cloud    bool   `long:"cloud" description:"log into the cloud deployment"`
	Username string `short:"u" long:"username" description:"Touchstone username"`
	Password string `short:"p" long:"password" description:"Touchstone password (prompted when omitted)"`
	URL      string `long:"url" description:"cloud mcp url, overrides TS_MCP_CLOUD_URL"`
}

func (c *LoginCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	username, password, err := promptCredentials(c.Username, c.Password)
	if err != nil {
		return err
	}
	store, err := rt.secretStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Cloud {
		serverURL := c.URL
		if serverURL == "" {
			serverURL = rt.cfg.CloudURL
		}
		result, err := newCloudClient(serverURL).login(ctx, username, password)
		if err != nil {
			return err
		}
		if err = store.Set(ctx, auth.SessionAccount(serverURL), result.SessionToken); err != nil {
			return err
		}
		fmt.Printf("Logged in to %v as %v, session valid until %v\n",
			serverURL, username, result.ExpiresAt.Format("2006-01-02"))
		return nil
	}

	provider := auth.NewLocal(store, rt.client, auth.WithLocalLogger(rt.logger))
	if err = provider.Login(ctx, username, password); err != nil {
		return err
	}
	fmt.Printf("Logged in as %v\n", username)
	return nil
}

// LogoutCommand removes stored credentials, locally or from the cloud.
type LogoutCommand struct {
	Cloud bool   `long:"cloud" description:"log out of the cloud deployment"`
	URL   string `long:"url" description:"cloud mcp url, overrides TS_MCP_CLOUD_URL"`
}

func (c *LogoutCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	store, err := rt.secretStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Cloud {
		serverURL := c.URL
		if serverURL == "" {
			serverURL = rt.cfg.CloudURL
		}
		account := auth.SessionAccount(serverURL)
		token, err := store.Get(ctx, account)
		if err != nil {
			return err
		}
		if token == "" {
			fmt.Println("Not logged in")
			return nil
		}
		if err = newCloudClient(serverURL).logout(ctx, token); err != nil {
			return err
		}
		if err = store.Delete(ctx, account); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	}

	provider := auth.NewLocal(store, rt.client, auth.WithLocalLogger(rt.logger))
	if err = provider.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

// StatusCommand shows what credentials are stored and whether they are live.
type StatusCommand struct {
	Cloud bool   `long:"cloud" description:"check the cloud session"`
	URL   string `long:"url" description:"cloud mcp url, overrides TS_MCP_CLOUD_URL"`
}

func (c *StatusCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	store, err := rt.secretStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Cloud {
		serverURL := c.URL
		if serverURL == "" {
			serverURL = rt.cfg.CloudURL
		}
		token, err := store.Get(ctx, auth.SessionAccount(serverURL))
		if err != nil {
			return err
		}
		if token == "" {
			fmt.Println("Not logged in")
			return nil
		}
		status, err := newCloudClient(serverURL).status(ctx, token)
		if err != nil {
			return err
		}
		if !status.Authenticated {
			fmt.Println("Session expired, run: touchstone-mcp login --cloud")
			return nil
		}
		fmt.Printf("Authenticated, session valid until %v\n", status.ExpiresAt.Format("2006-01-02"))
		return nil
	}

	provider := auth.NewLocal(store, rt.client)
	status, err := provider.Status(ctx)
	if err != nil {
		return err
	}
	if !status.HasAPIKey {
		fmt.Println("Not logged in, run: touchstone-mcp login")
		return nil
	}
	fmt.Printf("Logged in as %v\n", status.Username)
	if status.HasCredentials {
		fmt.Println("Automatic API key refresh: enabled")
	} else {
		fmt.Println("Automatic API key refresh: disabled (no stored credentials)")
	}
	return nil
}

// promptCredentials fills whichever of username and password was not passed
// as a flag. The password prompt never echoes.
func promptCredentials(username, password string) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Fprint(os.Stderr, "Touchstone username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Touchstone password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", err
		}
		password = string(raw)
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}
	return username, password, nil
}
