package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/musicgen/pkg/cmd/analyze"
	"github.com/igolaizola/musicgen/pkg/cmd/generate"
	"github.com/igolaizola/musicgen/pkg/cmd/history"
	"github.com/igolaizola/musicgen/pkg/cmd/migrate"
	"github.com/igolaizola/musicgen/pkg/cmd/web"
	"github.com/igolaizola/musicgen/pkg/model"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("musicgen", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "musicgen [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newGenerateCommand(),
			newWebCommand(),
			newHistoryCommand(),
			newAnalyzeCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "musicgen version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musicgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "create or update the history tables",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &generate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	storageFlags(fs, &cfg.DBType, &cfg.DBConn, &cfg.FSType, &cfg.FSConn, &cfg.Proxy)
	modelFlags(fs, &cfg.Model)

	fs.StringVar(&cfg.Style, "style", string(music.Rap), fmt.Sprintf("music style (%s)", styles()))
	fs.StringVar(&cfg.Description, "description", "", "description of the music")
	fs.Float64Var(&cfg.Duration, "duration", music.DefaultDuration, fmt.Sprintf("duration in seconds (%d-%d)", music.MinDuration, music.MaxDuration))
	fs.StringVar(&cfg.Output, "output", music.Filename, "output wav file")
	fs.StringVar(&cfg.Wave, "wave", "", "output jpg file with the waveform plot (optional)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musicgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "generate music from a style and a description",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return generate.Run(ctx, cfg)
		},
	}
}

func newWebCommand() *ffcli.Command {
	cmd := "web"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	storageFlags(fs, &cfg.DBType, &cfg.DBConn, &cfg.FSType, &cfg.FSConn, &cfg.Proxy)
	modelFlags(fs, &cfg.Model)

	fs.StringVar(&cfg.Addr, "addr", ":1337", "address to listen on")
	fs.DurationVar(&cfg.Timeout, "generation-timeout", 0, "timeout for each generation including the wait for the model (0 means no timeout)")
	fsMapVar(fs, &cfg.Credentials, "creds", nil, "credentials to use (semicolon separated) Example: user1:pass1;user2:pass2")
	fsMapVar(fs, &cfg.Volumes, "volumes", nil, "volumes to mount (semicolon separated) Example: ./samples:/samples")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musicgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "serve the music generation web page",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

func newHistoryCommand() *ffcli.Command {
	cmd := "history"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &history.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	fs.StringVar(&cfg.Style, "style", "", "filter by style (optional)")
	fs.BoolVar(&cfg.Failed, "failed", false, "only show failed generations")
	fs.IntVar(&cfg.Page, "page", 1, "page number")
	fs.IntVar(&cfg.Size, "size", 100, "page size")
	fs.StringVar(&cfg.Output, "output", "", "output file (.csv or .json), stdout if empty")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musicgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "export the generation history",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return history.Run(ctx, cfg)
		},
	}
}

func newAnalyzeCommand() *ffcli.Command {
	cmd := "analyze"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &analyze.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Input, "input", music.Filename, "input wav or mp3 file")
	fs.StringVar(&cfg.Output, "output", "", "output folder for plots (optional)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musicgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "print stats and plots of an audio file",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return analyze.Run(ctx, cfg)
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("MUSICGEN"),
	}
}

func storageFlags(fs *flag.FlagSet, dbType, dbConn, fsType, fsConn, proxy *string) {
	fs.StringVar(dbType, "db-type", "", "db type (sqlite, mysql, postgres), history is disabled if empty")
	fs.StringVar(dbConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(fsType, "fs-type", "", "fs type (local, s3, telegram), files aren't stored if empty")
	fs.StringVar(fsConn, "fs-conn", "", "path for local, key:secret@bucket.region[@endpoint] for s3, token@chat for telegram")
	fs.StringVar(proxy, "proxy", "", "proxy to use")
}

func modelFlags(fs *flag.FlagSet, cfg *model.Config) {
	fs.StringVar(&cfg.Type, "model-type", "remote", "model backend (remote, script, mock)")
	fs.StringVar(&cfg.Conn, "model-conn", "", "url for remote, command line for script, sample rate for mock")
	fs.StringVar(&cfg.Token, "model-token", "", "bearer token for the remote backend (optional)")
	fs.StringVar(&cfg.Name, "model", music.DefaultModel, "pretrained model name")
	fs.StringVar(&cfg.Device, "device", "cpu", "device to run the model on")
	fs.StringVar(&cfg.DType, "dtype", "float32", "tensor data type")
	fs.DurationVar(&cfg.Timeout, "model-timeout", 30*time.Minute, "timeout for model requests")
}

func styles() string {
	var s []string
	for _, st := range music.Styles() {
		s = append(s, string(st))
	}
	return strings.Join(s, ", ")
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
