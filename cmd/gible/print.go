package main

import (
	"fmt"
	"strings"

	"gible/shared/types"
	"gible/shared/utils"

	"github.com/fatih/color"
)

func shortOrNone(id string) string {
	if id == "" {
		return "(no commits)"
	}
	return utils.ShortID(id)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Println(color.YellowString("warning:"), w)
	}
}

func printChanges(changes []shared.Change) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, c := range changes {
		switch c.Action {
		case shared.ActionAdded:
			fmt.Printf("\t%s %s (%s)\n", green("A"), c.Path, c.Storage)
		case shared.ActionModified:
			fmt.Printf("\t%s %s (%s)\n", yellow("M"), c.Path, c.Storage)
		case shared.ActionDeleted:
			fmt.Printf("\t%s %s\n", red("D"), c.Path)
		}
	}
}

func printRestore(res *shared.RestoreResult) {
	printWarnings(res.Warnings)
	for _, p := range res.Written {
		fmt.Printf("\t%s %s\n", color.GreenString("W"), p)
	}
	for _, p := range res.Removed {
		fmt.Printf("\t%s %s\n", color.RedString("D"), p)
	}
}

func printMerge(res *shared.MergeResult) {
	printWarnings(res.Warnings)
	switch res.Outcome {
	case shared.MergeUpToDate:
		fmt.Println("Already up to date.")
	case shared.MergeAlreadyMerged:
		fmt.Printf("Branch '%s' is already merged into '%s'.\n", res.Branch, res.Into)
	case shared.MergeFastForward:
		fmt.Printf("Fast-forward to %s\n", utils.ShortID(res.CommitID))
		printRestore(&shared.RestoreResult{Written: res.Updated, Removed: res.Deleted})
	case shared.MergeMerged:
		printRestore(&shared.RestoreResult{Written: res.Updated, Removed: res.Deleted})
		fmt.Printf("Merged '%s' into '%s' as %s\n", res.Branch, res.Into, color.YellowString(utils.ShortID(res.CommitID)))
	case shared.MergeConflicted:
		red := color.New(color.FgRed).SprintFunc()
		for _, p := range res.Conflicts {
			fmt.Printf("\t%s %s\n", red("C"), p)
		}
		fmt.Println("Automatic merge failed; fix the conflicts, add the files and commit the result.")
		fmt.Println("Conflict records are in", res.ConflictDir)
	}
}

func printStatus(st *shared.Status) {
	printWarnings(st.Warnings)

	switch {
	case st.Detached:
		fmt.Printf("HEAD detached at %s\n", utils.ShortID(st.Head))
	default:
		fmt.Printf("On branch %s\n", st.Branch)
	}
	if st.Head == "" {
		fmt.Println("No commits yet")
	}

	if st.MergeInProgress {
		fmt.Printf("\nMerging %s. Resolve conflicts, then 'gible add' and 'gible commit'.\n", utils.ShortID(st.MergeHead))
		for _, p := range st.Conflicts {
			fmt.Printf("\t%s %s\n", color.RedString("both modified:"), p)
		}
	}

	if st.Clean() {
		fmt.Println("\nNothing to commit, working tree clean")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	if len(st.Staged) > 0 {
		fmt.Println("\nStaged files:")
		for _, f := range st.Staged {
			fmt.Printf("\t%s %s (%s)\n", green("✓"), f.Path, f.Mode)
		}
	}
	if len(st.Modified) > 0 {
		fmt.Println("\nModified files:")
		for _, p := range st.Modified {
			fmt.Printf("\t%s %s\n", yellow("M"), p)
		}
	}
	if len(st.Deleted) > 0 {
		fmt.Println("\nDeleted files:")
		for _, p := range st.Deleted {
			fmt.Printf("\t%s %s\n", red("D"), p)
		}
	}
	if len(st.Untracked) > 0 {
		fmt.Println("\nUntracked files:")
		fmt.Println("  (use \"gible add <file>...\" to include in the next commit)")
		for _, p := range st.Untracked {
			fmt.Printf("\t%s %s\n", blue("?"), p)
		}
	}
}

func printCommitHeader(c shared.CommitInfo) {
	color.New(color.FgYellow).Printf("commit %s\n", c.ID)
	if c.Merge {
		short := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			short[i] = utils.ShortID(p)
		}
		fmt.Printf("Merge: %s\n", strings.Join(short, " "))
	}
	fmt.Printf("Author: %s\n", c.Author)
	fmt.Printf("Date:   %s\n", c.Timestamp)
	fmt.Printf("\n    %s\n", c.Message)
}

func printFileDiff(f shared.FileDiff) {
	color.New(color.Bold).Printf("%s (%s)\n", f.Path, f.Entry)
	if f.Binary {
		fmt.Println("Binary content differs")
		return
	}
	fmt.Printf("%s %s\n", color.GreenString("+%d", f.Additions), color.RedString("-%d", f.Deletions))
	printColoredDiff(f.Diff)
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}
