package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Rank stored jobs against your preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		matches, err := env.Matches.CalculateJobMatches(ctx, userID)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, matches)
		}
		if len(matches) == 0 {
			fmt.Fprintln(os.Stderr, "No matching jobs.")
			return nil
		}
		formatMatches(os.Stdout, matches)
		return nil
	},
}

var preferencesSetCmd = &cobra.Command{
	Use:   "set-preferences <file.yaml>",
	Short: "Save match preferences from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		pref, err := loadPreference(args[0])
		if err != nil {
			return err
		}
		pref.UserID = userID

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.SavePreference(ctx, pref); err != nil {
			return eris.Wrap(err, "save preferences")
		}
		fmt.Fprintf(os.Stdout, "Saved preferences for %s\n", userID)
		return nil
	},
}

// preferenceFile mirrors model.Preference with YAML keys. JSON is valid
// YAML, so both formats load.
type preferenceFile struct {
	DesiredTitles    []string `yaml:"desired_titles"`
	Locations        []string `yaml:"locations"`
	RemotePreference string   `yaml:"remote_preference"`
	SalaryMin        *float64 `yaml:"salary_min"`
	SalaryMax        *float64 `yaml:"salary_max"`
	SalaryCurrency   string   `yaml:"salary_currency"`
	JobTypes         []string `yaml:"job_types"`
	Skills           []string `yaml:"skills"`
	ExperienceLevel  string   `yaml:"experience_level"`
	EducationLevel   string   `yaml:"education_level"`
	Keywords         []string `yaml:"keywords"`
	ExcludeKeywords  []string `yaml:"exclude_keywords"`
}

func loadPreference(path string) (*model.Preference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read preferences file")
	}
	var f preferenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "parse preferences file")
	}

	pref := &model.Preference{
		DesiredTitles:    f.DesiredTitles,
		Locations:        f.Locations,
		RemotePreference: model.RemotePreference(f.RemotePreference),
		SalaryMin:        f.SalaryMin,
		SalaryMax:        f.SalaryMax,
		SalaryCurrency:   f.SalaryCurrency,
		Skills:           f.Skills,
		ExperienceLevel:  f.ExperienceLevel,
		EducationLevel:   f.EducationLevel,
		Keywords:         f.Keywords,
		ExcludeKeywords:  f.ExcludeKeywords,
	}
	for _, t := range f.JobTypes {
		pref.JobTypes = append(pref.JobTypes, model.JobType(t))
	}
	if err := validator.New().Struct(pref); err != nil {
		return nil, eris.Wrap(err, "invalid preferences")
	}
	return pref, nil
}

func init() {
	matchesCmd.Flags().Bool("json", false, "print the matches as JSON")
	matchesCmd.PersistentFlags().String("user", "local", "user id")
	matchesCmd.AddCommand(preferencesSetCmd)
	rootCmd.AddCommand(matchesCmd)
}
