// Пакет cli — команды офлайн-утилиты feedctl: проверка файла объявлений
// и сборка фида без табличного и объектного хранилищ.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BogdanPhenda/Nova/internal/config"
	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/feed"
	"github.com/BogdanPhenda/Nova/internal/normalizer"
	"github.com/BogdanPhenda/Nova/internal/upload"
	"github.com/BogdanPhenda/Nova/internal/validator"
)

// ErrInvalidFile — файл не прошёл проверку.
var ErrInvalidFile = errors.New("файл не прошёл проверку")

// Clock — источник времени для нормализации и даты генерации фида.
var Clock = time.Now

// NewRootCmd собирает корневую команду feedctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedctl",
		Short:         "Проверка файлов объявлений и сборка XML-фида",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ValidateCmd(), RenderCmd(), VersionCmd())
	return root
}

// ValidateCmd — feedctl validate <file>.
func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Проверить файл объявлений",
		Long:  "Декодирует файл (xlsx, csv, json) и выводит ошибки и предупреждения проверки. Код выхода 1, если есть ошибки.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, vr, format, err := checkFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Формат: %s\n", format)
			printResult(out, vr)
			if !vr.OK {
				return ErrInvalidFile
			}
			return nil
		},
	}
}

// RenderCmd — feedctl render <file> --owner --source-file --out.
func RenderCmd() *cobra.Command {
	var ownerID, sourceFile, out string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Собрать XML-фид из файла объявлений",
		Long:  "Проверяет и нормализует файл, затем пишет фид в --out атомарно или в stdout, если --out не задан.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, vr, _, err := checkFile(args[0])
			if err != nil {
				return err
			}
			if !vr.OK {
				printResult(cmd.ErrOrStderr(), vr)
				return ErrInvalidFile
			}
			if sourceFile == "" {
				sourceFile = filepath.Base(args[0])
			}

			batch := normalizer.New(Clock).Normalize(ds, ownerID, sourceFile)
			data, err := feed.New(Clock).Generate(batch.Listings, "")
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := feed.WriteFile(out, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Фид записан: %s (%d объявлений)\n", out, len(batch.Listings))
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "идентификатор владельца объявлений")
	cmd.Flags().StringVar(&sourceFile, "source-file", "", "идентификатор файла-источника (по умолчанию имя файла)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "путь выходного XML")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

// VersionCmd — feedctl version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedctl %s\n", config.Version)
		},
	}
}

// checkFile декодирует и проверяет файл. Нечитаемое содержимое
// становится ошибкой проверки, неподдерживаемый формат возвращается ошибкой.
func checkFile(path string) (*model.Dataset, *model.ValidationResult, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("открытие %s: %w", path, err)
	}
	defer f.Close()

	ds, format, err := upload.Decode(filepath.Base(path), f)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedFormat) {
			return nil, nil, "", err
		}
		return nil, &model.ValidationResult{Errors: []string{err.Error()}}, format, nil
	}
	return ds, validator.New(validator.DefaultConfig()).Validate(ds), format, nil
}

func printResult(w io.Writer, vr *model.ValidationResult) {
	if vr.OK && len(vr.Warnings) == 0 {
		fmt.Fprintln(w, "Ошибок нет")
		return
	}
	section(w, "Ошибки", vr.Errors)
	section(w, "Предупреждения", vr.Warnings)
}

func section(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n  %s\n", title, len(lines), strings.Join(lines, "\n  "))
}
