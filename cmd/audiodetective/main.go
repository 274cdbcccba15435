// Command audiodetective learns songs into a fingerprint database and
// identifies unknown clips against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/soundprint/audiodetective/internal/service"
	"github.com/soundprint/audiodetective/internal/storage"
	"github.com/soundprint/audiodetective/pkg/logger"
)

const maxMatchesToPrint = 10

func main() {
	godotenv.Load()
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "learn":
		err = runLearn(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	case "match":
		err = runMatch(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: audiodetective <command> [flags]

commands:
  learn <dir>                 fingerprint every audio file in a directory
  add <file> -title <title>   fingerprint a single file
  match <file>                identify an unknown clip
  list                        list stored songs
  delete <song-id>            remove a stored song

common flags: -db <path> -temp <dir> -rate <hz> -factor <n>
`)
}

// commonFlags registers the flags shared by every command and returns the
// service options they configure.
func commonFlags(fs *flag.FlagSet) func() []service.Option {
	dbPath := fs.String("db", envOrDefault("AUDIODETECTIVE_DB_PATH", storage.DefaultDBFile), "path to the SQLite database file")
	tempDir := fs.String("temp", envOrDefault("AUDIODETECTIVE_TEMP_DIR", os.TempDir()), "directory for converted audio files")
	rate := fs.Int("rate", 44100, "sample rate audio is converted to")
	factor := fs.Int("factor", 4, "downsampling factor applied before fingerprinting")
	return func() []service.Option {
		return []service.Option{
			service.WithDBPath(*dbPath),
			service.WithTempDir(*tempDir),
			service.WithSampleRate(*rate),
			service.WithDownsampleFactor(*factor),
		}
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func runLearn(args []string) error {
	fs := flag.NewFlagSet("learn", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("learn requires a directory argument")
	}

	svc, err := service.New(opts()...)
	if err != nil {
		return err
	}
	defer svc.Close()

	learned, err := svc.Learn(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("Learned %d songs.\n", learned)
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	opts := commonFlags(fs)
	title := fs.String("title", "", "song title (required)")
	fs.Parse(args)
	if fs.NArg() != 1 || *title == "" {
		return fmt.Errorf("add requires an audio file argument and -title")
	}

	svc, err := service.New(opts()...)
	if err != nil {
		return err
	}
	defer svc.Close()

	songID, err := svc.AddSong(context.Background(), fs.Arg(0), *title)
	if err != nil {
		return err
	}
	fmt.Printf("Added %q (%s).\n", *title, songID)
	return nil
}

func runMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	opts := commonFlags(fs)
	verbose := fs.Bool("verbose", false, "print all candidates, not just the best")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("match requires an audio file argument")
	}

	svc, err := service.New(opts()...)
	if err != nil {
		return err
	}
	defer svc.Close()

	matches, err := svc.Identify(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("Sorry, did not recognize sound :(")
		return nil
	}
	if *verbose {
		for i, match := range matches {
			if i >= maxMatchesToPrint {
				break
			}
			fmt.Printf("%d: %s, with %d common descriptors and score %d.\n",
				i+1, match.Title, match.SharedDescriptors, match.Score)
		}
		return nil
	}
	fmt.Println(matches[0].Title)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	svc, err := service.New(opts()...)
	if err != nil {
		return err
	}
	defer svc.Close()

	songs, err := svc.Songs()
	if err != nil {
		return err
	}
	for _, song := range songs {
		fmt.Printf("%s  %s\n", song.ID, song.Title)
	}
	fmt.Printf("Total: %d songs\n", len(songs))
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("delete requires a song id argument")
	}

	svc, err := service.New(opts()...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Delete(fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("Deleted.")
	return nil
}
