package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/stagecfg"
	"bindery/internal/store"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage clients, projects, users, and storage",
	}

	adminCmd.AddCommand(newClientAddCommand(ctx))
	adminCmd.AddCommand(newProjectAddCommand(ctx))
	adminCmd.AddCommand(newProjectListCommand(ctx))
	adminCmd.AddCommand(newProjectWorkflowCommand(ctx))
	adminCmd.AddCommand(newUserAddCommand(ctx))
	adminCmd.AddCommand(newStorageAddCommand(ctx))
	adminCmd.AddCommand(newStorageListCommand(ctx))
	adminCmd.AddCommand(newProjectStorageCommand(ctx))
	adminCmd.AddCommand(newTagCommand(ctx))
	adminCmd.AddCommand(newAuditRecentCommand(ctx))

	return adminCmd
}

func newClientAddCommand(ctx *commandContext) *cobra.Command {
	var contact string

	cmd := &cobra.Command{
		Use:   "client-add <name>",
		Short: "Register a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				client, err := st.CreateClient(cmd.Context(), strings.TrimSpace(args[0]), contact)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added client %d (%s)\n", client.ID, client.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contact, "contact", "", "Contact details")
	return cmd
}

func newProjectAddCommand(ctx *commandContext) *cobra.Command {
	var clientID int64
	var stages []string

	cmd := &cobra.Command{
		Use:   "project-add <name>",
		Short: "Create a project with its enabled workflow stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				workflow, err := parseWorkflow(stages)
				if err != nil {
					return err
				}
				project, err := st.CreateProject(cmd.Context(), strings.TrimSpace(args[0]), clientID, workflow)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added project %d (%s) with %d stages\n",
					project.ID, project.Name, len(project.Workflow))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Owning client identifier")
	cmd.Flags().StringSliceVar(&stages, "stages", nil, "Enabled stage keys in canonical order (default: all)")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "project-list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				projects, err := st.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(projects))
				for _, project := range projects {
					labels := make([]string, 0, len(project.Workflow))
					for _, key := range project.Workflow {
						labels = append(labels, string(key))
					}
					rows = append(rows, []string{
						strconv.FormatInt(project.ID, 10),
						project.Name,
						strconv.FormatInt(project.ClientID, 10),
						strings.Join(labels, ","),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Client", "Workflow"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectWorkflowCommand(ctx *commandContext) *cobra.Command {
	var stages []string

	cmd := &cobra.Command{
		Use:   "project-workflow <project-id>",
		Short: "Replace a project's enabled workflow stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				workflow, err := parseWorkflow(stages)
				if err != nil {
					return err
				}
				if err := st.UpdateProjectWorkflow(cmd.Context(), id, workflow); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %d workflow updated (%d stages)\n", id, len(workflow))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stages, "stages", nil, "Enabled stage keys in canonical order (default: all)")
	return cmd
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var role string
	var permissions []string
	var clientID int64
	var projectIDs []int64

	cmd := &cobra.Command{
		Use:   "user-add <name>",
		Short: "Create an operator or client account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				user := &store.User{
					Name:        strings.TrimSpace(args[0]),
					Role:        role,
					Permissions: permissions,
					ProjectIDs:  projectIDs,
				}
				if clientID > 0 {
					user.ClientID = &clientID
				}
				created, err := st.CreateUser(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added user %d (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "operator", "Account role")
	cmd.Flags().StringSliceVar(&permissions, "permissions", nil, "Permissions (scan_books, index_books, qc_books, ...)")
	cmd.Flags().Int64Var(&clientID, "client", 0, "Scope the account to one client")
	cmd.Flags().Int64SliceVar(&projectIDs, "projects", nil, "Scope the account to specific projects, in pull order")
	return cmd
}

func newStorageAddCommand(ctx *commandContext) *cobra.Command {
	var ip string
	var path string

	cmd := &cobra.Command{
		Use:   "storage-add <name>",
		Short: "Register a storage volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				storage, err := st.CreateStorage(cmd.Context(), strings.TrimSpace(args[0]), ip, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added storage %d (%s at %s)\n", storage.ID, storage.Name, storage.IP)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "Storage network IP")
	cmd.Flags().StringVar(&path, "path", "", "Mount path")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func newStorageListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "storage-list",
		Short: "List storage volumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				storages, err := st.ListStorages(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(storages))
				for _, storage := range storages {
					rows = append(rows, []string{
						strconv.FormatInt(storage.ID, 10),
						storage.Name,
						storage.IP,
						formatOptional(storage.Path),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "IP", "Path"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectStorageCommand(ctx *commandContext) *cobra.Command {
	var projectID, storageID int64
	var weight, fixedMin int
	var percentMin float64

	cmd := &cobra.Command{
		Use:   "project-storage",
		Short: "Associate a project with a storage volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				err := st.SetProjectStorage(cmd.Context(), &store.ProjectStorage{
					ProjectID:       projectID,
					StorageID:       storageID,
					Weight:          weight,
					FixedDailyMin:   fixedMin,
					PercentDailyMin: percentMin,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %d now distributes to storage %d (weight %d)\n",
					projectID, storageID, weight)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project identifier")
	cmd.Flags().Int64Var(&storageID, "storage", 0, "Storage identifier")
	cmd.Flags().IntVar(&weight, "weight", 1, "Distribution weight (>= 1)")
	cmd.Flags().IntVar(&fixedMin, "fixed-daily-min", 0, "Fixed daily minimum book count")
	cmd.Flags().Float64Var(&percentMin, "percent-daily-min", 0, "Percent daily minimum [0,100]")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("storage")
	return cmd
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage a client's rejection tag vocabulary",
	}

	var clientID int64
	var description string
	addCmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a rejection tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				tag, err := st.CreateRejectionTag(cmd.Context(), clientID, args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added tag %d (%s)\n", tag.ID, tag.Label)
				return nil
			})
		},
	}
	addCmd.Flags().Int64Var(&clientID, "client", 0, "Owning client identifier")
	addCmd.Flags().StringVar(&description, "description", "", "Tag description")
	_ = addCmd.MarkFlagRequired("client")

	var listClientID int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a client's rejection tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				tags, err := st.RejectionTagsForClient(cmd.Context(), listClientID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(tags))
				for _, tag := range tags {
					rows = append(rows, []string{
						strconv.FormatInt(tag.ID, 10),
						tag.Label,
						formatOptional(tag.Description),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Label", "Description"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().Int64Var(&listClientID, "client", 0, "Client identifier")
	_ = listCmd.MarkFlagRequired("client")

	var newLabel string
	renameCmd := &cobra.Command{
		Use:   "rename <tag-id>",
		Short: "Rename a rejection tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := st.RenameRejectionTag(cmd.Context(), id, newLabel); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tag %d renamed to %s\n", id, newLabel)
				return nil
			})
		},
	}
	renameCmd.Flags().StringVar(&newLabel, "to", "", "New label")
	_ = renameCmd.MarkFlagRequired("to")

	deleteCmd := &cobra.Command{
		Use:   "delete <tag-id>",
		Short: "Delete a rejection tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := st.DeleteRejectionTag(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tag %d deleted\n", id)
				return nil
			})
		},
	}

	tagCmd.AddCommand(addCmd, listCmd, renameCmd, deleteCmd)
	return tagCmd
}

func newAuditRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit-recent",
		Short: "Show the latest audit entries across all books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.RecentAudit(cmd.Context(), limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					bookID := "-"
					if entry.BookID != nil {
						bookID = strconv.FormatInt(*entry.BookID, 10)
					}
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						bookID,
						entry.Event,
						formatOptional(entry.Actor),
						formatOptional(entry.Detail),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Book", "Event", "Actor", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Number of entries to show")
	return cmd
}

// parseWorkflow turns --stages values into stage keys, defaulting to the
// full canonical sequence.
func parseWorkflow(stages []string) ([]stagecfg.Key, error) {
	if len(stages) == 0 {
		var workflow []stagecfg.Key
		for _, stage := range stagecfg.Sequence() {
			workflow = append(workflow, stage.Key)
		}
		return workflow, nil
	}
	workflow := make([]stagecfg.Key, 0, len(stages))
	for _, stage := range stages {
		key, err := parseStageKey(stage)
		if err != nil {
			return nil, err
		}
		workflow = append(workflow, key)
	}
	return workflow, nil
}
