package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cashplan/internal/core"
	"cashplan/internal/services"
)

func (a *app) companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
	}

	var owner string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a company owned by a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			c, err := services.NewCompanyService(repo).CreateCompany(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	create.Flags().StringVar(&owner, "owner", "", "user id of the owner")
	_ = create.MarkFlagRequired("owner")

	var user string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the companies a user belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			companies, err := services.NewCompanyService(repo).ListCompanies(cmd.Context(), user)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tROLE")
			for _, c := range companies {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Role)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&user, "user", "", "user id")
	_ = list.MarkFlagRequired("user")

	cmd.AddCommand(create, list)
	return cmd
}

func (a *app) memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage company members",
	}

	var actor, role string
	add := &cobra.Command{
		Use:   "add <company-id> <user-id>",
		Short: "Add a user to a company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			err = services.NewCompanyService(repo).AddMember(cmd.Context(), actor, args[0], args[1], core.Role(role))
			if err != nil {
				return err
			}
			a.logger.Info("Member added", "company_id", args[0], "user_id", args[1], "role", role)
			return nil
		},
	}
	add.Flags().StringVar(&actor, "as", "", "owner performing the change")
	add.Flags().StringVar(&role, "role", string(core.RoleMember), "owner or member")
	_ = add.MarkFlagRequired("as")

	cmd.AddCommand(add)
	return cmd
}

func (a *app) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage company accounts",
	}

	var actor, currency string
	create := &cobra.Command{
		Use:   "create <company-id> <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			acc, err := services.NewCompanyService(repo).CreateAccount(cmd.Context(), actor, args[0], args[1], currency)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), acc.ID)
			return nil
		},
	}
	create.Flags().StringVar(&actor, "as", "", "member performing the change")
	create.Flags().StringVar(&currency, "currency", "PLN", "ISO currency code")
	_ = create.MarkFlagRequired("as")

	cmd.AddCommand(create)
	return cmd
}
