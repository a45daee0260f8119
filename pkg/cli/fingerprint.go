package cli

import (
	"strings"

	"github.com/convox/bundle/pkg/fingerprint"
	"github.com/convox/stdcli"
	"github.com/pkg/errors"
)

func init() {
	register("fingerprint", "hash a directory the way assets are hashed", Fingerprint, stdcli.CommandOptions{
		Flags: []stdcli.Flag{
			stdcli.StringFlag("exclude", "e", "comma separated exclude patterns"),
			stdcli.StringFlag("extra", "", "extra data mixed into the hash"),
			stdcli.StringFlag("follow", "", "symlink mode: always, never, external, block-external"),
		},
		Usage:    "<path>",
		Validate: stdcli.Args(1),
	})
}

func Fingerprint(e *Engine, c *stdcli.Context) error {
	opts := fingerprint.Options{
		Extra:  c.String("extra"),
		Follow: fingerprint.Follow(c.String("follow")),
	}

	switch opts.Follow {
	case "", fingerprint.FollowAlways, fingerprint.FollowNever, fingerprint.FollowExternal, fingerprint.FollowBlockExternal:
	default:
		return errors.Errorf("invalid follow mode: %s", opts.Follow)
	}

	if v := c.String("exclude"); v != "" {
		opts.Exclude = strings.Split(v, ",")
	}

	hash, err := fingerprint.Fingerprint(c.Arg(0), opts)
	if err != nil {
		return err
	}

	return c.Writef("%s\n", hash)
}
