package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eclair-lang/eclair-cli/internal/config"
	"github.com/eclair-lang/eclair-cli/internal/interp"
	"github.com/eclair-lang/eclair-cli/internal/lang"
	"github.com/eclair-lang/eclair-cli/internal/logging"
	"github.com/eclair-lang/eclair-cli/internal/project"
	"github.com/eclair-lang/eclair-cli/internal/repl"
	"github.com/eclair-lang/eclair-cli/internal/session"
)

// NewRootCmd builds the eclair command: an interactive REPL, or a
// one-shot interpreter when a script path is given.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eclair [script.sol]",
		Short: "Interactive interpreter for Solidity-flavoured EVM scripting",
		Long: `Eclair evaluates Solidity-looking expressions against an EVM node:
view calls, transactions, event queries and pure computation, from an
interactive prompt or a script file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath := ""
			if len(args) == 1 {
				scriptPath = args[0]
			}
			return run(scriptPath)
		},
	}

	bindFlags(rootCmd.Flags())

	return rootCmd
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String("rpc-url", "", "RPC endpoint URL (defaults to $ETH_RPC_URL)")
	_ = viper.BindPFlag("rpc-url", flags.Lookup("rpc-url"))
	_ = viper.BindEnv("rpc-url", "ETH_RPC_URL")
}

func Execute() error {
	return NewRootCmd().Execute()
}

func run(scriptPath string) error {
	log := logging.NewLogger()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return err
	}
	if url := viper.GetString("rpc-url"); url != "" {
		cfg.RPCURL = cfg.ResolveRPC(url)
	}

	sess := session.New(cfg, log)
	defer sess.Close()
	ip := interp.New(sess, log)

	// Project autoload: register every compiled contract ABI.
	contracts, err := project.Detect(cwd)
	if err != nil {
		log.Warn("scanning project artifacts", "err", err)
	}
	for _, contract := range contracts {
		sess.RegisterABI(contract.Name, contract.ABI)
		ip.RegisterContract(contract.Name, interp.ContractType{Name: contract.Name, ABI: contract.ABI})
	}
	if len(contracts) > 0 {
		log.Info("loaded project ABIs", "count", len(contracts))
	}

	if err := runInitScript(ip, cwd); err != nil {
		log.Warn("init script failed", "err", err)
	}

	if scriptPath != "" {
		return runScript(ip, scriptPath)
	}
	return repl.New(ip, log).Run()
}

// runScript interprets a file once in the pre-initialized environment.
func runScript(ip *interp.Interp, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	stmts, err := lang.Parse(string(raw))
	if err != nil {
		return err
	}
	if _, err := ip.EvalProgram(stmts); err != nil {
		return err
	}
	return nil
}

// runInitScript looks for .eclair_init.sol in the working directory or
// ~/.foundry/ and, when it defines setUp(), calls it in the root scope
// so its assignments persist as top-level bindings.
func runInitScript(ip *interp.Interp, cwd string) error {
	paths := []string{filepath.Join(cwd, ".eclair_init.sol")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".foundry", ".eclair_init.sol"))
	}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		stmts, err := lang.Parse(string(raw))
		if err != nil {
			return err
		}
		if _, err := ip.EvalProgram(stmts); err != nil {
			return err
		}
		if setUp, ok := ip.Env().Get("setUp"); ok {
			if fn, isFunc := setUp.(*interp.UserFunc); isFunc {
				if err := ip.RunBodyInRoot(fn); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return nil
}
