package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every connected job board",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := searchRequestFromFlags(cmd, strings.Join(args, " "))
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Search.SearchAllPlatforms(ctx, userID, req)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		if asJSON {
			return writeJSON(os.Stdout, res)
		}
		if len(res.Jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}
		formatListings(os.Stdout, res.Jobs)
		fmt.Fprintf(os.Stderr, "%d jobs (%d premium) from %s in %dms\n",
			res.TotalCount, res.PremiumCount, strings.Join(res.ProvidersUsed, ", "), res.SearchDurationMs)
		return nil
	},
}

var searchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Search.History(ctx, userID, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No searches found.")
			return nil
		}
		formatHistory(os.Stdout, entries)
		return nil
	},
}

func searchRequestFromFlags(cmd *cobra.Command, query string) (model.SearchRequest, error) {
	flags := cmd.Flags()
	req := model.SearchRequest{Query: query}
	req.Location, _ = flags.GetString("location")
	req.Country, _ = flags.GetString("country")
	req.Remote, _ = flags.GetBool("remote")
	req.PostedWithin, _ = flags.GetInt("posted-within")
	req.Providers, _ = flags.GetStringSlice("providers")

	jobType, _ := flags.GetString("job-type")
	req.JobType = model.JobType(jobType)

	if flags.Changed("salary-min") {
		v, _ := flags.GetFloat64("salary-min")
		req.SalaryMin = model.Float(v)
	}
	if flags.Changed("salary-max") {
		v, _ := flags.GetFloat64("salary-max")
		req.SalaryMax = model.Float(v)
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		return req, eris.New("--salary-min exceeds --salary-max")
	}
	if noPremium, _ := flags.GetBool("no-premium"); noPremium {
		f := false
		req.IncludePremium = &f
	}
	return req, nil
}

func addSearchFlags(f *pflag.FlagSet) {
	f.String("location", "", "location filter")
	f.String("country", "", "two-letter country code")
	f.Bool("remote", false, "remote jobs only")
	f.String("job-type", "", "full-time, part-time, contract, temporary or internship")
	f.Float64("salary-min", 0, "minimum salary")
	f.Float64("salary-max", 0, "maximum salary")
	f.Int("posted-within", 0, "only jobs posted within N days")
	f.StringSlice("providers", nil, "restrict to these provider ids")
	f.Bool("no-premium", false, "drop premium listings")
	f.Bool("json", false, "print the raw result as JSON")
}

func init() {
	addSearchFlags(searchCmd.Flags())

	searchHistoryCmd.Flags().Int("limit", 20, "max entries")
	searchCmd.AddCommand(searchHistoryCmd)

	searchCmd.PersistentFlags().String("user", "local", "user id")
	rootCmd.AddCommand(searchCmd)
}
