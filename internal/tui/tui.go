package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/rs/zerolog"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/engine"
	"github.com/abhisek/predinator/internal/learning"
	"github.com/abhisek/predinator/internal/model"
	"github.com/abhisek/predinator/internal/ui/components"
	"github.com/abhisek/predinator/internal/ui/layout"
	"github.com/abhisek/predinator/internal/ui/theme"
)

// Game is what the interactive front ends need. *service.Service implements it.
type Game interface {
	NewGame(ctx context.Context) (*engine.Engine, error)
	Answer(e *engine.Engine, text string) error
	Guess(e *engine.Engine) (model.Guess, error)
	RecordOutcome(correct bool)
	KnowsSubject(ctx context.Context, name string) (bool, error)
	AddQuestion(ctx context.Context, req learning.AddQuestionRequest) (*learning.PreparedLearn, error)
	LearnNewSubject(ctx context.Context, name string, pathAnswers map[string]answer.Value, full map[string]string) (learning.LearnResult, error)
}

type stage int

const (
	stageLoading stage = iota
	stageAsking
	stageConfirm
	stageName
	stageOfferQuestion
	stagePrompt
	stageAttributeID
	stageAnswerActual
	stageAnswerGuessed
	stageLearning
	stageDone
)

var answerOptions = []string{answer.LabelYes, answer.LabelNo, answer.LabelDontKnow}

type gameStartedMsg struct {
	eng *engine.Engine
	err error
}

type questionAddedMsg struct {
	prep *learning.PreparedLearn
	err  error
}

type learnedMsg struct {
	name string
	res  learning.LearnResult
	err  error
}

// Model is the root Bubble Tea model for one play session.
type Model struct {
	ctx  context.Context
	game Game
	log  zerolog.Logger

	stage  stage
	eng    *engine.Engine
	choice components.Choice
	input  components.TextInput

	question  catalog.Question
	guess     model.Guess
	hasGuess  bool
	actual    string
	prompt    string
	attrID    string
	ansActual string

	notice string
	err    error
	width  int
	height int
}

// New creates the model. The first game starts on Init.
func New(ctx context.Context, game Game, log zerolog.Logger) Model {
	return Model{ctx: ctx, game: game, log: log}
}

func (m Model) Init() tea.Cmd {
	return m.startGame()
}

func (m Model) startGame() tea.Cmd {
	ctx, game := m.ctx, m.game
	return func() tea.Msg {
		e, err := game.NewGame(ctx)
		return gameStartedMsg{eng: e, err: err}
	}
}

func (m Model) learn(name string, path map[string]answer.Value) tea.Cmd {
	ctx, game := m.ctx, m.game
	return func() tea.Msg {
		res, err := game.LearnNewSubject(ctx, name, path, nil)
		return learnedMsg{name: name, res: res, err: err}
	}
}

func (m Model) addQuestion(req learning.AddQuestionRequest) tea.Cmd {
	ctx, game := m.ctx, m.game
	return func() tea.Msg {
		prep, err := game.AddQuestion(ctx, req)
		return questionAddedMsg{prep: prep, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case gameStartedMsg:
		return m.handleStarted(msg)

	case questionAddedMsg:
		return m.handleQuestionAdded(msg)

	case learnedMsg:
		return m.handleLearned(msg)

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if m.isTextStage() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) isTextStage() bool {
	switch m.stage {
	case stageName, stagePrompt, stageAttributeID:
		return true
	}
	return false
}

func (m Model) isChoiceStage() bool {
	switch m.stage {
	case stageAsking, stageConfirm, stageOfferQuestion, stageAnswerActual, stageAnswerGuessed, stageDone:
		return true
	}
	return false
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.isTextStage() || m.stage == stageOfferQuestion || m.stage == stageAnswerActual || m.stage == stageAnswerGuessed {
			m.notice = "Learning skipped."
			return m.toDone()
		}
		return m, tea.Quit
	}

	switch {
	case m.isTextStage():
		if msg.String() == "enter" {
			return m.submitText()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case m.isChoiceStage():
		m.choice, _ = m.choice.Update(msg)
		if m.choice.Submitted {
			return m.submitChoice()
		}
	}
	return m, nil
}

func (m Model) handleStarted(msg gameStartedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		if errors.Is(msg.err, model.ErrModelUnavailable) {
			m.notice = "No model yet. Run `predinator seed` to load sample data."
		}
		return m.toDone()
	}
	m.eng = msg.eng
	m.guess, m.hasGuess = model.Guess{}, false
	m.actual, m.prompt, m.attrID, m.ansActual = "", "", "", ""
	m.notice, m.err = "", nil
	return m.advance()
}

// advance shows the next question or makes the guess.
func (m Model) advance() (tea.Model, tea.Cmd) {
	q, leaf, err := m.eng.NextQuestion()
	if err != nil {
		m.err = err
		return m.toDone()
	}
	if !leaf {
		m.question = q
		m.stage = stageAsking
		m.choice = components.NewChoice(q.Prompt, answerOptions, "y", "n", "d")
		return m, nil
	}

	g, err := m.game.Guess(m.eng)
	if err != nil {
		m.log.Warn().Err(err).Msg("no guess available")
		m.notice = "I'm stumped!"
		return m.toText(stageName, "Who were you thinking of?", "name")
	}
	m.guess, m.hasGuess = g, true
	m.stage = stageConfirm
	m.choice = components.NewChoice(fmt.Sprintf("Is it %s?", g.Subject), []string{"Yes", "No"}, "y", "n")
	return m, nil
}

func (m Model) submitChoice() (tea.Model, tea.Cmd) {
	picked := m.choice.Value()
	switch m.stage {
	case stageAsking:
		if err := m.game.Answer(m.eng, picked); err != nil {
			m.err = err
			m.choice.Submitted = false
			return m, nil
		}
		m.err = nil
		return m.advance()

	case stageConfirm:
		if picked == "Yes" {
			m.game.RecordOutcome(true)
			m.notice = fmt.Sprintf("I guessed it: %s!", m.guess.Subject)
			return m.toDone()
		}
		m.game.RecordOutcome(false)
		return m.toText(stageName, "Who were you thinking of?", "name")

	case stageOfferQuestion:
		if picked == "Yes" {
			return m.toText(stagePrompt,
				fmt.Sprintf("Type a yes/no question that tells %s apart from %s:", m.actual, m.guess.Subject),
				"question")
		}
		m.stage = stageLearning
		return m, m.learn(m.actual, m.eng.PathAnswers())

	case stageAnswerActual:
		m.ansActual = picked
		m.stage = stageAnswerGuessed
		m.choice = components.NewChoice(fmt.Sprintf("%s\nFor %s the answer is:", m.prompt, m.guess.Subject), answerOptions, "y", "n", "d")
		return m, nil

	case stageAnswerGuessed:
		m.stage = stageLearning
		return m, m.addQuestion(learning.AddQuestionRequest{
			GuessedName:      m.guess.Subject,
			ActualName:       m.actual,
			Path:             m.eng.PathAnswers(),
			Prompt:           m.prompt,
			AttributeID:      m.attrID,
			AnswerForActual:  m.ansActual,
			AnswerForGuessed: picked,
		})

	case stageDone:
		if picked == "Play again" {
			m.stage = stageLoading
			return m, m.startGame()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) submitText() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	switch m.stage {
	case stageName:
		if value == "" {
			m.err = learning.ErrEmptyName
			return m, nil
		}
		known, err := m.game.KnowsSubject(m.ctx, value)
		if err != nil {
			m.err = err
			return m.toDone()
		}
		if known {
			m.err = learning.ErrDuplicateSubject
			m.notice = fmt.Sprintf("I already know %s.", value)
			return m.toDone()
		}
		m.err = nil
		m.actual = value
		if !m.hasGuess {
			m.stage = stageLearning
			return m, m.learn(m.actual, m.eng.PathAnswers())
		}
		m.stage = stageOfferQuestion
		m.choice = components.NewChoice(
			fmt.Sprintf("Add a question that tells %s apart from %s?", m.actual, m.guess.Subject),
			[]string{"Yes", "No"}, "y", "n")
		return m, nil

	case stagePrompt:
		if value == "" {
			m.err = learning.ErrInvalidPrompt
			return m, nil
		}
		m.err = nil
		m.prompt = value
		mm, cmd := m.toText(stageAttributeID, "Short attribute id for this question:", "attribute_id")
		next := mm.(Model)
		next.input.SetValue(learning.SuggestAttributeID(value))
		return next, cmd

	case stageAttributeID:
		id, err := learning.ValidateAttributeID(value)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.attrID = id
		m.stage = stageAnswerActual
		m.choice = components.NewChoice(fmt.Sprintf("%s\nFor %s the answer is:", m.prompt, m.actual), answerOptions, "y", "n", "d")
		return m, nil
	}
	return m, nil
}

func (m Model) handleQuestionAdded(msg questionAddedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		if errors.Is(msg.err, catalog.ErrDuplicateAttribute) {
			mm, cmd := m.toText(stageAttributeID, "That id is taken. Pick another attribute id:", "attribute_id")
			next := mm.(Model)
			next.input.SetValue(m.attrID)
			return next, cmd
		}
		return m.toDone()
	}
	return m, m.learn(msg.prep.SubjectName, msg.prep.PathAnswers)
}

func (m Model) handleLearned(msg learnedMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err != nil && !msg.res.Saved:
		m.err = msg.err
		m.notice = fmt.Sprintf("Could not learn %s.", msg.name)
	case msg.err != nil:
		m.err = msg.err
		m.notice = fmt.Sprintf("Saved %s, but retraining failed.", msg.name)
	default:
		m.err = nil
		m.notice = fmt.Sprintf("Thanks! Next time I'll know %s.", msg.name)
	}
	return m.toDone()
}

func (m Model) toText(s stage, prompt, placeholder string) (tea.Model, tea.Cmd) {
	m.stage = s
	m.input = components.NewTextInput(prompt, placeholder, 120)
	return m, m.input.Init()
}

func (m Model) toDone() (tea.Model, tea.Cmd) {
	m.stage = stageDone
	m.choice = components.NewChoice("Play again?", []string{"Play again", "Quit"}, "p", "q")
	return m, nil
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}

	header := layout.RenderHeader(m.title(), m.status(), m.width)
	footer := layout.RenderFooter(m.hints(), m.width)
	v.SetContent(layout.RenderFrame(header, m.body(), footer, m.width, m.height))
	return v
}

func (m Model) title() string {
	switch m.stage {
	case stageAsking:
		return fmt.Sprintf("Question %d", len(m.eng.Path())+1)
	case stageConfirm:
		return "My guess"
	case stageDone:
		return "Game over"
	case stageLoading, stageLearning:
		return "Thinking"
	}
	return "Teach me"
}

func (m Model) status() string {
	if m.eng == nil || m.eng.Snapshot() == nil {
		return ""
	}
	return fmt.Sprintf("%d subjects", m.eng.Snapshot().Encoder.Len())
}

func (m Model) hints() []layout.KeyHint {
	switch {
	case m.isTextStage():
		return []layout.KeyHint{{Key: "Enter", Description: "Submit"}, {Key: "Esc", Description: "Skip"}}
	case m.isChoiceStage():
		return []layout.KeyHint{{Key: "↑↓", Description: "Navigate"}, {Key: "Enter", Description: "Select"}, {Key: "Esc", Description: "Quit"}}
	}
	return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
}

func (m Model) body() string {
	var b strings.Builder
	if m.notice != "" {
		b.WriteString(theme.Guess.Render(m.notice))
		b.WriteString("\n\n")
	}
	if m.err != nil {
		b.WriteString(theme.Incorrect.Render(m.err.Error()))
		b.WriteString("\n\n")
	}
	if m.stage == stageConfirm {
		b.WriteString(theme.Hint.Render("Confidence "))
		b.WriteString(layout.RenderConfidence(m.guess.Confidence, 20))
		b.WriteString("\n\n")
	}
	switch {
	case m.isTextStage():
		b.WriteString(m.input.View())
	case m.isChoiceStage():
		b.WriteString(m.choice.View())
	default:
		b.WriteString(theme.Hint.Render("Thinking..."))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// Run starts the interactive program.
func Run(ctx context.Context, game Game, log zerolog.Logger) error {
	p := tea.NewProgram(New(ctx, game, log), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
