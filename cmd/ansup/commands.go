package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ansup-io/ansup/pkg/client"
)

type command struct{}

// apiClient builds a client for the daemon, defaulting to the local one.
func apiClient(f APIFlags) (*client.Client, context.Context, context.CancelFunc, error) {
	url := f.URL
	if url == "" {
		url = "http://127.0.0.1:8080/api"
	}
	c := client.New(client.Config{BaseURL: url, Timeout: f.Timeout})
	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	if !c.IsReachable(ctx) {
		cancel()
		return nil, nil, nil, fmt.Errorf("daemon not reachable at %s - start it first with 'ansup serve'", url)
	}
	return c, ctx, cancel, nil
}

func (command) Register(f RegisterFlags) error {
	c, ctx, cancel, err := apiClient(f.API)
	if err != nil {
		return err
	}
	defer cancel()

	env, err := parseEnvPairs(f.Env)
	if err != nil {
		return err
	}
	id, err := c.Register(ctx, client.RegisterRequest{
		ID:      f.ID,
		Name:    f.Name,
		Kind:    f.Kind,
		Entry:   f.Entry,
		WorkDir: f.WorkDir,
		Env:     env,
		Enabled: f.Enabled,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered analysis %s (id: %s)\n", f.Name, id)
	return nil
}

func (command) Unregister(id string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	if err := c.Unregister(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Unregistered analysis %s\n", id)
	return nil
}

func (command) Start(id string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	st, err := c.Start(ctx, id)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (command) Stop(id string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	st, err := c.Stop(ctx, id)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (command) Restart(id string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	st, err := c.Restart(ctx, id)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (command) Status(id string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	if id == "" {
		all, err := c.StatusAll(ctx)
		if err != nil {
			return err
		}
		printJSON(all)
		return nil
	}
	st, err := c.Status(ctx, id)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (command) Logs(id string, limit int, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	lines, err := c.Logs(ctx, id, limit)
	if err != nil {
		return err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		fmt.Printf("[%s] [%s] %s\n", l.Time.Format("2006-01-02T15:04:05"), l.Origin, l.Message)
	}
	return nil
}

func (command) Rename(id, name string, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	st, err := c.Rename(ctx, id, name)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (command) ClearLogs(id string, truncate bool, f APIFlags) error {
	c, ctx, cancel, err := apiClient(f)
	if err != nil {
		return err
	}
	defer cancel()
	if err := c.ClearLogs(ctx, id, truncate); err != nil {
		return err
	}
	fmt.Printf("Cleared logs for analysis %s\n", id)
	return nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env pair %q, expected KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
