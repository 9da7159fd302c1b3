package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/mcp"
	"github.com/M0hit1029/GenEx/internal/ops"
	"github.com/M0hit1029/GenEx/internal/requirement"
	"github.com/M0hit1029/GenEx/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "genex",
		Usage:   "Requirements store and document exporter",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(d),
			mcpCmd(d),
			projectCmd(d),
			requirementCmd(d),
			batchCmd(d),
			extractCmd(d),
			exportCmd(d),
			previewCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API and document previews over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides listen_addr)"},
		},
		Action: func(c *cli.Context) error {
			if addr := c.String("addr"); addr != "" {
				d.cfg.ListenAddr = addr
			}
			srv := web.NewServer(d.db, d.cfg, d.env, Version)
			return web.Run(srv, d.log)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP tool server on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(d.cfg.DisabledTools); len(unknown) > 0 {
				d.log.Warn("unknown tools in disabled_tools", "tools", strings.Join(unknown, ","))
			}
			return mcp.Run(d.db, d.cfg, d.env, Version)
		},
	}
}

// projectCmd creates the project command group.
func projectCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Create and list projects",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Required: true},
					&cli.StringFlag{Name: "owner", Aliases: []string{"u"}, Required: true, Usage: "Owner user id"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.CreateProject(c.Context, d.db, d.env, ops.CreateProjectInput{
						Name:        c.String("name"),
						Description: c.String("description"),
						OwnerUserID: c.String("owner"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "list",
				Usage: "List the projects of an owner",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "owner", Aliases: []string{"u"}, Required: true, Usage: "Owner user id"},
				}, pageFlags()...),
				Action: func(c *cli.Context) error {
					output, err := ops.ListProjects(c.Context, d.db, ops.ListProjectsInput{
						OwnerUserID: c.String("owner"),
						Limit:       c.Int("limit"),
						Offset:      c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// requirementCmd creates the requirement command group.
func requirementCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "requirement",
		Usage: "Create and version requirements",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a requirement (draft from flags, or JSON on stdin with --stdin)",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
				}, draftFlags()...),
				Action: func(c *cli.Context) error {
					draft, err := readDraft(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.CreateRequirement(c.Context, d.db, d.env, ops.CreateRequirementInput{
						ProjectID: c.String("project"),
						Draft:     draft,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "append",
				Usage:     "Append a version to a requirement",
				ArgsUsage: "<id>",
				Flags:     draftFlags(),
				Action: func(c *cli.Context) error {
					draft, err := readDraft(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.AppendVersion(c.Context, d.db, d.env, ops.AppendVersionInput{
						RequirementID: c.Args().First(),
						Draft:         draft,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "latest",
				Usage:     "Show the latest version of a requirement",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetLatestVersion(c.Context, d.db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "versions",
				Usage:     "Show every version of a requirement",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.ListVersions(c.Context, d.db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "list",
				Usage: "List the requirements of a project",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
				}, pageFlags()...),
				Action: func(c *cli.Context) error {
					output, err := ops.ListForProject(c.Context, d.db, ops.ListInput{
						ProjectID: c.String("project"),
						Limit:     c.Int("limit"),
						Offset:    c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// batchCmd creates the batch command group.
func batchCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Store and show requirement batches",
		Subcommands: []*cli.Command{
			{
				Name:  "store",
				Usage: "Store a batch (reads a JSON array of records from stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
					&cli.StringFlag{Name: "owner", Aliases: []string{"u"}, Required: true, Usage: "Owner user id"},
					&cli.StringFlag{Name: "policy", Usage: "replace|append (defaults to batch_policy)"},
				},
				Action: func(c *cli.Context) error {
					var records []requirement.RawRecord
					if err := readJSON(c.App.Reader, &records); err != nil {
						return outputError(err)
					}
					output, err := ops.StoreBatch(c.Context, d.db, d.cfg, d.env, ops.StoreBatchInput{
						ProjectID:   c.String("project"),
						OwnerUserID: c.String("owner"),
						Records:     records,
						Policy:      c.String("policy"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "get",
				Usage: "Show the stored batch of a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.GetBatch(c.Context, d.db, c.String("project"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// extractCmd creates the extract command.
func extractCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Run the extractor over input files and store the resulting batch",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "prompt", Usage: "Instructions passed to the extractor"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Extract(c.Context, d.db, d.cfg, d.env, ops.ExtractInput{
				ProjectID: c.String("project"),
				UserID:    c.String("user"),
				Files:     c.Args().Slice(),
				Prompt:    c.String("prompt"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Render a project document and commit it to the export history",
		Flags: []cli.Flag{
			// Not marked Required: the parent's required flags would also
			// be enforced for `export list`.
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "docx|pdf|jira_json"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Requesting user id (commit author)"},
			&cli.StringFlag{Name: "source", Value: ops.SourceBatch, Usage: "batch|versions"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, d.db, d.cfg, d.env, ops.ExportInput{
				ProjectID:        c.String("project"),
				Format:           c.String("format"),
				RequestingUserID: c.String("user"),
				Source:           c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the documents stored for a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListExports(d.env, c.String("project"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Print the HTML preview of a project document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Required: true},
			&cli.StringFlag{Name: "source", Value: ops.SourceBatch, Usage: "batch|versions"},
		},
		Action: func(c *cli.Context) error {
			html, err := ops.Preview(c.Context, d.db, d.cfg, d.env, ops.PreviewInput{
				ProjectID: c.String("project"),
				Source:    c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			_, err = c.App.Writer.Write(html)
			return err
		},
	}
}

// Helper functions

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}},
	}
}

func draftFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "stdin", Usage: "Read the draft as JSON from stdin"},
		&cli.StringFlag{Name: "feature"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "type", Usage: "F|NF"},
		&cli.IntFlag{Name: "priority", Usage: "1 (highest) to 5"},
		&cli.StringFlag{Name: "moscow", Usage: "M|S|C|W"},
		&cli.StringFlag{Name: "notes"},
		&cli.StringFlag{Name: "status", Usage: "draft|approved|deprecated"},
		&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Author user id"},
	}
}

// readDraft builds a draft from stdin JSON or from flags. Only flags the
// caller set end up in the draft.
func readDraft(c *cli.Context) (requirement.Draft, error) {
	var draft requirement.Draft
	if c.Bool("stdin") {
		err := readJSON(c.App.Reader, &draft)
		return draft, err
	}

	draft.Feature = c.String("feature")
	draft.Kind = requirement.Kind(c.String("type"))
	draft.Status = requirement.Status(c.String("status"))
	if c.IsSet("description") {
		s := c.String("description")
		draft.Description = &s
	}
	if c.IsSet("priority") {
		n := c.Int("priority")
		draft.Priority = &n
	}
	if c.IsSet("moscow") {
		m := requirement.MoSCoW(c.String("moscow"))
		draft.MoSCoW = &m
	}
	if c.IsSet("notes") {
		s := c.String("notes")
		draft.Notes = &s
	}
	if c.IsSet("user") {
		s := c.String("user")
		draft.AuthorID = &s
	}
	return draft, nil
}

// readJSON decodes one JSON value from r, rejecting unknown fields.
func readJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewInvalidRequest("expected JSON on stdin")
		}
		return errors.NewInvalidRequest("invalid JSON on stdin: " + err.Error())
	}
	return nil
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if e, ok := errors.As(err); ok {
		if e.Code == errors.ErrInternal && e.Cause() != nil {
			return cli.Exit(fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause()), 1)
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", e.Code, e.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
