package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/rcache"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := cache.Get(cmd.Context(), args[0], callOpts(cmd)...)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), format(v))
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long:  "Sets the value for a key. Values that parse as JSON are stored as such, anything else as a string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := cache.Set(cmd.Context(), args[0], parseValue(args[1]), ttlFlag(cmd), callOpts(cmd)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored(ok))
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [key] [value]",
		Short: "Sets the value for a key unless it already exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := cache.Add(cmd.Context(), args[0], parseValue(args[1]), ttlFlag(cmd), callOpts(cmd)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored(ok))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return cache.Delete(cmd.Context(), args[0], callOpts(cmd)...)
			}
			return cache.DeleteMany(cmd.Context(), args, callOpts(cmd)...)
		},
	}
	delPatternCmd = &cobra.Command{
		Use:   "del-pattern [pattern]",
		Short: "Deletes every key matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cache.DeletePattern(cmd.Context(), args[0], callOpts(cmd)...)
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := cache.HasKey(cmd.Context(), args[0], callOpts(cmd)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "Lists keys matching a glob pattern (default *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			ks, err := cache.Keys(cmd.Context(), pattern, callOpts(cmd)...)
			for _, k := range ks {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return err
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increments a numeric value (delta defaults to 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  counter(false),
	}
	decrCmd = &cobra.Command{
		Use:   "decr [key] [delta]",
		Short: "Decrements a numeric value (delta defaults to 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  counter(true),
	}
	incrVersionCmd = &cobra.Command{
		Use:   "incr-version [key] [delta]",
		Short: "Moves a value to a later version, keeping its TTL",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := deltaArg(args)
			if err != nil {
				return err
			}
			nv, err := cache.IncrVersion(cmd.Context(), args[0], int(delta), callOpts(cmd)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nv)
			return nil
		},
	}
	nsVersionCmd = &cobra.Command{
		Use:   "namespace-version [delta]",
		Short: "Prints the namespace version, bumping it first when delta is given",
		Long: `Prints the version new keys are written under. With a delta the counter is
bumped first, which needs --version-source redis.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				n   int
				err error
			)
			if len(args) == 0 {
				n, err = versions.Current(cmd.Context())
			} else {
				var delta int
				if delta, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("delta must be a number: %w", err)
				}
				n, err = versions.Bump(cmd.Context(), delta)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Flushes every database the cache writes to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if force, _ := cmd.Flags().GetBool("yes"); !force {
				return fmt.Errorf("refusing to flush without --yes")
			}
			return cache.Clear(cmd.Context())
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{setCmd, addCmd} {
		c.Flags().Int("ttl", -1, "timeout in seconds; -1 uses the configured default, 0 never expires")
	}
	for _, c := range []*cobra.Command{getCmd, setCmd, addCmd, delCmd, delPatternCmd, hasCmd, keysCmd, incrCmd, decrCmd, incrVersionCmd} {
		c.Flags().Int("at-version", 0, "use this key version instead of the default")
	}
	clearCmd.Flags().Bool("yes", false, "confirm flushing")
}

func counter(decr bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		delta, err := deltaArg(args)
		if err != nil {
			return err
		}
		var v any
		if decr {
			v, err = cache.Decr(cmd.Context(), args[0], delta, callOpts(cmd)...)
		} else {
			v, err = cache.Incr(cmd.Context(), args[0], delta, callOpts(cmd)...)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), format(v))
		return nil
	}
}

func deltaArg(args []string) (int64, error) {
	if len(args) < 2 {
		return 1, nil
	}
	d, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delta must be a number: %w", err)
	}
	return d, nil
}

func callOpts(cmd *cobra.Command) []rcache.CallOption {
	if cmd.Flags().Changed("at-version") {
		n, _ := cmd.Flags().GetInt("at-version")
		return []rcache.CallOption{rcache.WithVersion(n)}
	}
	return nil
}

func ttlFlag(cmd *cobra.Command) time.Duration {
	secs, _ := cmd.Flags().GetInt("ttl")
	if secs < 0 {
		return rcache.DefaultTimeout
	}
	return time.Duration(secs) * time.Second
}

// parseValue keeps numbers, objects and lists typed so incr and structured
// reads work; everything else is a plain string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func format(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func stored(ok bool) string {
	if ok {
		return "stored"
	}
	return "not stored"
}
