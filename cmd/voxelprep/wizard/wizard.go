// Package wizard implements the interactive terminal configurator: a short
// sequence of forms building a pipeline configuration, with the option to
// save it or run it directly with live progress.
package wizard

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/voxelprep/cmd/voxelprep/wizard/components"
	"github.com/mrsinham/voxelprep/cmd/voxelprep/wizard/screens"
	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/pipeline"
	"github.com/rs/zerolog"
)

// Phase is the current wizard screen.
type Phase int

const (
	PhaseInput Phase = iota
	PhaseStages
	PhaseSummary
	PhaseSaveConfig
	PhaseProgress
	PhaseComplete
	PhaseError
)

type summaryAction string

const (
	actionRun    summaryAction = "run"
	actionSave   summaryAction = "save"
	actionBack   summaryAction = "back"
	actionCancel summaryAction = "cancel"
)

// Wizard drives the phase state machine.
type Wizard struct {
	state *WizardState

	phase      Phase
	inputForm  *huh.Form
	stagesForm *huh.Form
	summary    *huh.Form
	saveForm   *huh.Form

	action     summaryAction
	configPath string

	reporter       *pipeline.BufferReporter
	progressScreen *screens.ProgressScreen
	completion     screens.CompletionMsg

	width     int
	cancelled bool
	err       error
}

// NewWizard builds the wizard, optionally prefilled from existing answers.
func NewWizard(state *WizardState) *Wizard {
	if state == nil {
		state = DefaultState()
	}
	w := &Wizard{
		state:      state,
		phase:      PhaseInput,
		configPath: "config/pipeline.yaml",
	}
	w.inputForm = w.newInputForm()
	return w
}

func (w *Wizard) newInputForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Experiment name").
				Value(&w.state.ExperimentName),
			huh.NewInput().
				Title("Input directories").
				Description("Comma-separated; leave empty when using a CSV list").
				Value(&w.state.InputDirs),
			huh.NewInput().
				Title("CSV image list").
				Description("Path to a CSV with an image_path column (optional)").
				Value(&w.state.CSVPath),
			huh.NewConfirm().
				Title("Scan directories recursively?").
				Value(&w.state.Recursive),
			huh.NewInput().
				Title("Output directory").
				Value(&w.state.OutputDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("output directory is required")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Write comparison figures?").
				Value(&w.state.Visualize),
		),
	).WithShowHelp(false)
}

func (w *Wizard) newStagesForm() *huh.Form {
	options := make([]huh.Option[string], len(StageNames))
	for i, name := range StageNames {
		options[i] = huh.NewOption(strings.ReplaceAll(name, "_", " "), name)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Preprocessing stages").
				Description("Stages always run in the order shown").
				Options(options...).
				Value(&w.state.Stages),
			huh.NewInput().
				Title("Registration reference").
				Description("NIfTI template path, required when registration is selected").
				Value(&w.state.Reference),
			huh.NewInput().
				Title("Resampling spacing").
				Description("Target voxel spacing in mm, e.g. 1,1,1").
				Value(&w.state.Spacing),
		),
	).WithShowHelp(false)
}

func (w *Wizard) newSummaryForm() *huh.Form {
	w.action = actionRun
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[summaryAction]().
				Title("Ready").
				Options(
					huh.NewOption("Run the pipeline now", actionRun),
					huh.NewOption("Save configuration and exit", actionSave),
					huh.NewOption("Go back", actionBack),
					huh.NewOption("Cancel", actionCancel),
				).
				Value(&w.action),
		),
	).WithShowHelp(false)
}

func (w *Wizard) newSaveForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Save configuration to").
				Value(&w.configPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(false)
}

// Init implements tea.Model.
func (w *Wizard) Init() tea.Cmd {
	return w.inputForm.Init()
}

// Update implements tea.Model.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		w.width = wsm.Width
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" && w.phase != PhaseProgress {
		w.cancelled = true
		return w, tea.Quit
	}

	switch w.phase {
	case PhaseInput:
		return w.updateForm(msg, &w.inputForm, func() (tea.Model, tea.Cmd) {
			w.phase = PhaseStages
			w.stagesForm = w.newStagesForm()
			return w, w.stagesForm.Init()
		})
	case PhaseStages:
		return w.updateForm(msg, &w.stagesForm, func() (tea.Model, tea.Cmd) {
			w.phase = PhaseSummary
			w.summary = w.newSummaryForm()
			return w, w.summary.Init()
		})
	case PhaseSummary:
		return w.updateForm(msg, &w.summary, w.applySummaryAction)
	case PhaseSaveConfig:
		return w.updateForm(msg, &w.saveForm, w.saveConfig)
	case PhaseProgress:
		return w.updateProgress(msg)
	case PhaseComplete, PhaseError:
		if _, ok := msg.(tea.KeyMsg); ok {
			return w, tea.Quit
		}
	}
	return w, nil
}

func (w *Wizard) updateForm(msg tea.Msg, form **huh.Form, next func() (tea.Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	model, cmd := (*form).Update(msg)
	if f, ok := model.(*huh.Form); ok {
		*form = f
	}
	switch (*form).State {
	case huh.StateCompleted:
		return next()
	case huh.StateAborted:
		w.cancelled = true
		return w, tea.Quit
	}
	return w, cmd
}

func (w *Wizard) applySummaryAction() (tea.Model, tea.Cmd) {
	switch w.action {
	case actionBack:
		w.phase = PhaseInput
		w.inputForm = w.newInputForm()
		return w, w.inputForm.Init()
	case actionSave:
		w.phase = PhaseSaveConfig
		w.saveForm = w.newSaveForm()
		return w, w.saveForm.Init()
	case actionCancel:
		w.cancelled = true
		return w, tea.Quit
	}
	return w.startRun()
}

func (w *Wizard) saveConfig() (tea.Model, tea.Cmd) {
	cfg, err := w.state.ToConfig()
	if err == nil {
		err = config.Save(w.configPath, cfg)
	}
	if err != nil {
		return w.fail(err)
	}
	w.phase = PhaseComplete
	w.completion = screens.CompletionMsg{OutputDir: w.configPath}
	return w, nil
}

// startRun launches the pipeline in its own goroutine. The progress screen
// polls the shared reporter; the command blocks until the run finishes and
// delivers the terminal message.
func (w *Wizard) startRun() (tea.Model, tea.Cmd) {
	cfg, err := w.state.ToConfig()
	if err != nil {
		return w.fail(err)
	}

	w.reporter = &pipeline.BufferReporter{}
	w.phase = PhaseProgress
	w.progressScreen = screens.NewProgressScreen(w.reporter)

	run := func() tea.Msg {
		start := time.Now()
		summary, err := pipeline.New(cfg, zerolog.Nop(), w.reporter).Run()
		if err != nil {
			return screens.ErrorMsg{Error: err}
		}
		return screens.CompletionMsg{
			Processed: len(summary.Images) - summary.Failures(),
			Failed:    summary.Failures(),
			Duration:  time.Since(start),
			OutputDir: cfg.ImageSaving.OutputDir,
		}
	}
	return w, tea.Batch(w.progressScreen.Init(), run)
}

func (w *Wizard) updateProgress(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case screens.CompletionMsg:
		w.phase = PhaseComplete
		w.completion = msg
		return w, nil
	case screens.ErrorMsg:
		return w.fail(msg.Error)
	}

	model, cmd := w.progressScreen.Update(msg)
	if ps, ok := model.(*screens.ProgressScreen); ok {
		w.progressScreen = ps
	}
	if w.progressScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}
	return w, cmd
}

func (w *Wizard) fail(err error) (tea.Model, tea.Cmd) {
	w.err = err
	w.phase = PhaseError
	return w, nil
}

// View implements tea.Model.
func (w *Wizard) View() string {
	switch w.phase {
	case PhaseInput:
		return w.renderForm("Image input and output", w.inputForm)
	case PhaseStages:
		return w.renderForm("Stage selection", w.stagesForm)
	case PhaseSummary:
		return lipgloss.JoinVertical(lipgloss.Left,
			components.TitleStyle.Render("Summary"),
			components.SubtitleStyle.Render(w.describeState()),
			w.summary.View(),
		)
	case PhaseSaveConfig:
		return w.renderForm("Save configuration", w.saveForm)
	case PhaseProgress:
		return w.progressScreen.View()
	case PhaseComplete:
		if w.completion.Duration == 0 {
			return fmt.Sprintf("%s\n\nWrote %s\n\nPress any key to exit.\n",
				components.TitleStyle.Render("Configuration saved"), w.completion.OutputDir)
		}
		return fmt.Sprintf("%s\n\n%d image(s) processed, %d failed in %s.\nResults under %s\n\nPress any key to exit.\n",
			components.TitleStyle.Render("Run complete"),
			w.completion.Processed, w.completion.Failed,
			w.completion.Duration.Round(time.Second), w.completion.OutputDir)
	case PhaseError:
		return fmt.Sprintf("%s\n\n%v\n\nPress any key to exit.\n",
			components.ErrorStyle.Render("Error"), w.err)
	}
	return ""
}

func (w *Wizard) renderForm(title string, form *huh.Form) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render(title),
		form.View(),
	)
}

func (w *Wizard) describeState() string {
	stages := "none"
	if len(w.state.Stages) > 0 {
		stages = strings.Join(w.state.Stages, ", ")
	}
	input := w.state.InputDirs
	if w.state.CSVPath != "" {
		input = w.state.CSVPath
	}
	return fmt.Sprintf("Experiment: %s\nInput: %s\nOutput: %s\nStages: %s",
		w.state.ExperimentName, input, w.state.OutputDir, stages)
}

// Run starts the interactive wizard. When fromConfig is set, the forms are
// prefilled from that configuration file.
func Run(fromConfig string) error {
	var state *WizardState
	if fromConfig != "" {
		cfg, err := config.Load(fromConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		state = FromConfig(cfg)
	}

	p := tea.NewProgram(NewWizard(state), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}
	if w, ok := finalModel.(*Wizard); ok {
		if w.cancelled {
			return nil
		}
		if w.err != nil {
			return w.err
		}
	}
	return nil
}
