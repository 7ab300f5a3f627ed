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
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/volume"
	"github.com/blacktop/go-efistub/types"
	"github.com/c-bata/go-prompt"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type promptContext struct {
	pwd     string
	dir     string
	vol     *volume.Volume
	profile *Profile
}

var pctx *promptContext

func completer(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "boot", Description: "Boot the stub from this volume"},
		{Text: "cd", Description: "Change directory"},
		{Text: "exit", Description: "Quit prompt"},
		{Text: "hd", Description: "Hexdump the start of a file"},
		{Text: "ls", Description: "List files"},
		{Text: "map", Description: "Show the platform memory map"},
		{Text: "pwd", Description: "Print working directory name"},
		{Text: "stat", Description: "Show file size and slot fit"},
	}
	return prompt.FilterHasPrefix(s, d.TextBeforeCursor(), true)
}

func Executor(s string) {
	s = strings.TrimSpace(s)

	if s == "" {
		return
	} else if s == "exit" {
		os.Exit(0)
		return
	}

	args := strings.Fields(s)

	path := pctx.pwd
	if len(args) >= 2 {
		path = volume.Clean(pctx.pwd, args[1])
	}

	conf, err := stubConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		return
	}

	switch args[0] {
	case "cd":
		if len(args) == 1 {
			pctx.pwd = "/"
		} else if fi, err := pctx.vol.Stat(path); err != nil || !fi.IsDir() {
			fmt.Fprintln(os.Stderr, "Error: not a directory:", path)
		} else {
			pctx.pwd = path
		}
	case "pwd":
		fmt.Println(pctx.pwd)
	case "ls":
		infos, err := pctx.vol.ReadDir(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		for _, fi := range infos {
			name := fi.Name()
			if fi.IsDir() {
				name += "/"
			}
			fmt.Printf("%10s  %s\n", humanize.IBytes(uint64(fi.Size())), name)
		}
	case "stat":
		if len(args) < 2 {
			return
		}
		fi, err := pctx.vol.Stat(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		fmt.Printf("%s: %s (%d bytes)\n", path, humanize.IBytes(uint64(fi.Size())), fi.Size())
		for _, slot := range []struct {
			name string
			file string
			size uint64
		}{
			{"loader", conf.LoaderPath, conf.LoaderSlotSize},
			{"kernel", conf.KernelPath, conf.KernelSlotSize},
		} {
			if volume.Clean("/", slot.file) != path {
				continue
			}
			if uint64(fi.Size()) >= slot.size {
				fmt.Println(failColor(fmt.Sprintf("does not fit the %s slot of %s", slot.name, humanize.IBytes(slot.size))))
			} else {
				fmt.Println(okColor(fmt.Sprintf("fits the %s slot of %s", slot.name, humanize.IBytes(slot.size))))
			}
		}
	case "hd":
		if len(args) < 2 {
			return
		}
		root, err := pctx.vol.OpenVolume()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		f, err := root.Open(path, types.EFI_FILE_MODE_READ)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		defer f.Close()
		buf := make([]byte, 256)
		n, err := f.Read(buf)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		fmt.Print(hex.Dump(buf[:n]))
	case "map":
		m, _, err := newMachine("", pctx.profile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		if err := printMemoryMap(m, conf); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
		}
	case "boot":
		m, _, err := newMachine(pctx.dir, pctx.profile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			return
		}
		printReport(simulate(m, pctx.profile, conf, false))
	default:
		fmt.Fprintln(os.Stderr, "command not found: "+args[0])
	}
}

func PromptPrefix() (string, bool) {
	return pctx.pwd + " > ", true
}

// promptCmd represents the prompt command
var promptCmd = &cobra.Command{
	Use:   "prompt <VOLUME_DIR>",
	Short: "🚧 prompt to interactively inspect a boot volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Verbose {
			log.SetLevel(log.DebugLevel)
		}

		profilePath, _ := cmd.Flags().GetString("profile")

		dir := filepath.Clean(args[0])

		vol, err := volume.Open(dir, nil)
		if err != nil {
			return err
		}
		prof, err := loadProfile(profilePath)
		if err != nil {
			return err
		}
		conf, err := stubConfig()
		if err != nil {
			return err
		}

		pctx = &promptContext{
			pwd:     "/",
			dir:     dir,
			vol:     vol,
			profile: prof,
		}

		log.WithFields(log.Fields{
			"platform": prof.Name,
			"loader":   conf.LoaderPath,
			"kernel":   conf.KernelPath,
		}).Infof("Opened boot volume %s", dir)

		p := prompt.New(Executor, completer, prompt.OptionLivePrefix(PromptPrefix))

		p.Run()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringP("profile", "p", "", "platform profile plist")
}
