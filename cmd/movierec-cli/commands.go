package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"movierec/internal/client"
	"movierec/internal/domain"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func registerCmd(g *globals) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := c.Register(cmd.Context(), username, email, passwordOrEnv(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (user %d)\n", s.Email, s.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (env MOVIEREC_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := c.Login(cmd.Context(), email, passwordOrEnv(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s until %s\n", s.Email, s.ExpiresAt.Local().Format(time.Kitchen))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (env MOVIEREC_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			return c.Logout()
		},
	}
}

func whoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := c.Session()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (user %d), session expires %s\n", s.Email, s.UserID, s.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func listCmd(g *globals) *cobra.Command {
	var p client.PageRequest
	cmd := &cobra.Command{
		Use:       "list [all|watchlist|liked|disliked]",
		Short:     "List movies",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"all", "watchlist", "liked", "disliked"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			which := "all"
			if len(args) == 1 {
				which = args[0]
			}
			fetch := map[string]func() (*domain.Page[domain.Movie], error){
				"all":       func() (*domain.Page[domain.Movie], error) { return c.Movies(cmd.Context(), p) },
				"watchlist": func() (*domain.Page[domain.Movie], error) { return c.Watchlist(cmd.Context(), p) },
				"liked":     func() (*domain.Page[domain.Movie], error) { return c.Liked(cmd.Context(), p) },
				"disliked":  func() (*domain.Page[domain.Movie], error) { return c.Disliked(cmd.Context(), p) },
			}[which]
			page, err := fetch()
			if err != nil {
				return err
			}
			printMovies(cmd.OutOrStdout(), page.Items)
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d\n", p.PageNumber, len(page.Items), page.TotalCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Filter, "filter", "", "title substring")
	cmd.Flags().IntVar(&p.PageNumber, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&p.PageSize, "size", 0, "page size (server default when 0)")
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <movieId>",
		Short: "Show one movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			m, err := c.Movie(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func existsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <externalId>",
		Short: "Check whether a catalogue movie is already on one of your lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			ok, m, err := c.Exists(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "not found")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func addCmd(g *globals) *cobra.Command {
	var draft domain.MovieDraft
	var status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a movie (watchlist unless --status is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				draft.Status = st
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			m, err := c.AddMovie(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().Int64Var(&draft.ExternalID, "external-id", 0, "catalogue id")
	cmd.Flags().StringVar(&draft.Title, "title", "", "movie title")
	cmd.Flags().StringVar(&draft.Poster, "poster", "", "poster URL")
	cmd.Flags().IntVar(&draft.ReleaseYear, "year", 0, "release year")
	cmd.Flags().StringVar(&status, "status", "", "watchlist, liked or disliked")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func setStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <movieId> <watchlist|liked|disliked>",
		Short: "Move a movie to another list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			m, err := c.UpdateMovie(cmd.Context(), id, st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func rmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <movieId>",
		Short: "Remove a movie and show the refreshed lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			m, err := c.DeleteMovie(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "removed %q\n", m.Title)

			lists, err := c.Lists(cmd.Context(), client.PageRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "watchlist %d, liked %d, disliked %d\n",
				lists.Watchlist.TotalCount, lists.Liked.TotalCount, lists.Disliked.TotalCount)
			return nil
		},
	}
}

func importCmd(g *globals) *cobra.Command {
	var perSecond float64
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Add every movie in a JSON array of drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if perSecond <= 0 {
				return fmt.Errorf("--rate must be positive, got %v", perSecond)
			}
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var drafts []domain.MovieDraft
			if err := json.Unmarshal(b, &drafts); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			if _, err := c.Session(); err != nil {
				return err
			}

			ctx := cmd.Context()
			limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
			out := cmd.OutOrStdout()
			failed := 0
			for i, d := range drafts {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				m, err := c.AddMovie(ctx, d)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%d %q: %v\n", i, d.Title, err)
					continue
				}
				fmt.Fprintf(out, "%d %q: %s\n", i, m.Title, m.Status)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d movies failed", failed, len(drafts))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&perSecond, "rate", 5, "requests per second")
	return cmd
}

func passwordOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("MOVIEREC_PASSWORD")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printMovies(w io.Writer, movies []domain.Movie) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXTERNAL\tTITLE\tYEAR\tSTATUS")
	for _, m := range movies {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", m.ID, m.ExternalID, m.Title, m.ReleaseYear, m.Status)
	}
	_ = tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
