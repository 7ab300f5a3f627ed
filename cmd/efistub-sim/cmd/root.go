/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/blacktop/go-efistub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "efistub-sim",
	Short: "Run the EFI boot stub against simulated firmware",
	Long: `efistub-sim boots the EFI boot stub on the host: the boot volume is a
directory and the firmware memory map comes from a platform profile plist.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihandler.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.efistub.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().String("loader", efistub.LoaderFile, "loader file name on the boot volume")
	rootCmd.PersistentFlags().String("kernel", efistub.KernelFile, "kernel file name on the boot volume")
	rootCmd.PersistentFlags().Int("max-regions", efistub.MaxMemRegions, "capacity of the free memory region list")
	viper.BindPFlag("stub.loader", rootCmd.PersistentFlags().Lookup("loader"))
	viper.BindPFlag("stub.kernel", rootCmd.PersistentFlags().Lookup("kernel"))
	viper.BindPFlag("stub.max_regions", rootCmd.PersistentFlags().Lookup("max-regions"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".efistub")
	}

	viper.SetEnvPrefix("efistub")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// stubConfig is the default layout overridden by the config file, the
// environment and the flags
func stubConfig() (efistub.Config, error) {
	settings := struct {
		Stub efistub.Config `mapstructure:"stub"`
	}{
		Stub: efistub.DefaultConfig(),
	}
	if err := viper.Unmarshal(&settings); err != nil {
		return settings.Stub, fmt.Errorf("failed to parse stub config: %v", err)
	}
	if err := settings.Stub.Validate(); err != nil {
		return settings.Stub, err
	}
	return settings.Stub, nil
}
