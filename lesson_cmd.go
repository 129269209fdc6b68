package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/events"
	"github.com/lusa-tutor/lusa/internal/lesson"
	"github.com/lusa-tutor/lusa/internal/resilience"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson [SUBJECT]",
	Short: "Start a lesson",
	Long: paragraph(fmt.Sprintf("\nStart a lesson on your current subject, or on %s. Type to answer the tutor. "+
		"Commands: /voice FILE, /retry, /mute, /copy, /next, /quit.", keyword("SUBJECT"))),
	Example: paragraph("lusa lesson\nlusa lesson numeros"),
	Args:    cobra.MaximumNArgs(1),
	RunE:    runLesson,
}

const lessonHelp = "/voice FILE  send a recording\n" +
	"/retry       hear the last reply again\n" +
	"/mute        turn the voice off or on\n" +
	"/copy        copy the Portuguese phrase\n" +
	"/next        go to the next step once this one is complete\n" +
	"/quit        end the lesson"

// lessonREPL drives one lesson session from terminal input.
type lessonREPL struct {
	app      *app
	session  *lesson.Session
	renderer *glamour.TermRenderer
	out      io.Writer

	stepComplete bool
}

func runLesson(_ *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a, err := newApp(ctx, needs{speech: true, playback: true, lead: true})
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.account.Profile
	if len(args) == 1 {
		subject, err := curriculum.FindSubject(args[0])
		if err != nil {
			return fmt.Errorf("%w: %q", err, args[0])
		}
		if err := p.SelectSubject(subject.ID); err != nil {
			return err
		}
		if err := a.saveProfile(p); err != nil {
			return err
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}

	if a.synth == nil && cfg.Speech.Enabled {
		fmt.Println(warning("Sem saída de áudio: a voz está desligada."))
	}

	repl := &lessonREPL{app: a, renderer: r, out: os.Stdout}
	if err := repl.begin(ctx); err != nil {
		return err
	}
	return repl.loop(ctx, stdin)
}

func terminalWidth() int {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 { //nolint:gosec
		width = min(w, 120)
	}
	return width
}

func (r *lessonREPL) newSession() *lesson.Session {
	a := r.app
	opts := []lesson.Option{lesson.WithRetrier(a.retrier)}
	if a.synth != nil && a.player != nil {
		opts = append(opts, lesson.WithVoice(a.synth, a.player, a.synth.Throttle()))
	}
	s := lesson.NewSession(a.account.Profile, a.chatFactory(), opts...)
	s.OnNotice = func(n lesson.Notice) {
		fmt.Fprintln(r.out, warning(n.Message))
	}
	if a.player != nil {
		a.player.SetIdleCallback(s.PlaybackEnded)
	}
	return s
}

// begin opens a session on the current step and shows the tutor's opening.
func (r *lessonREPL) begin(ctx context.Context) error {
	r.session = r.newSession()
	r.stepComplete = false

	subject := r.session.Subject()
	step := subject.Steps[r.session.StepIndex()]
	c := r.session.Character()
	fmt.Fprintf(r.out, "\n%s · %s %d/%d · %s\n", heading(subject.Title), step.Label(),
		r.session.StepIndex()+1, len(subject.Steps), characterStyle(c.Color).Render(c.Name))
	fmt.Fprintln(r.out, faint("Type /help for commands."))

	out, err := r.session.Start(ctx)
	if err != nil {
		return err
	}
	r.show(ctx, out)
	return nil
}

func (r *lessonREPL) loop(ctx context.Context, in *bufio.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, keyword("› "))
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				log.Error("Lesson turn failed", "err", err)
				fmt.Fprintln(r.out, warning(describeError(err)))
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *lessonREPL) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		out, err := r.session.Send(ctx, line)
		if err != nil {
			return false, err
		}
		r.show(ctx, out)
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		r.session.StopAudio()
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, faint(lessonHelp))

	case "/voice":
		if arg == "" {
			return false, errors.New("usage: /voice FILE")
		}
		rec, err := os.ReadFile(strings.TrimSpace(arg))
		if err != nil {
			return false, fmt.Errorf("unable to read recording: %w", err)
		}
		out, err := r.session.SendVoice(ctx, rec, audioMIMEType(arg))
		if err != nil {
			return false, err
		}
		r.show(ctx, out)

	case "/retry":
		i := r.session.LastReplyIndex()
		if i < 0 {
			return false, lesson.ErrNoSuchReply
		}
		return false, r.session.RetryVoice(ctx, i)

	case "/mute":
		if r.session.ToggleMute() {
			fmt.Fprintln(r.out, faint("Voz desligada."))
		} else {
			fmt.Fprintln(r.out, faint("Voz ligada."))
		}

	case "/copy":
		i := r.session.LastReplyIndex()
		if i < 0 {
			return false, lesson.ErrNoSuchReply
		}
		phrase := lesson.PortuguesePhrase(r.session.Messages()[i].Text)
		if err := clipboard.WriteAll(phrase); err != nil {
			return false, fmt.Errorf("unable to copy to clipboard: %w", err)
		}
		fmt.Fprintf(r.out, "%s %s\n", faint("Copiado:"), phrase)

	case "/next":
		if !r.stepComplete {
			fmt.Fprintln(r.out, faint("Keep practising: the tutor has not completed this step yet."))
			return false, nil
		}
		return false, r.advance(ctx)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

// show renders a tutor reply and records its progress.
func (r *lessonREPL) show(ctx context.Context, out lesson.Outcome) {
	msg := r.session.Messages()[out.Index]
	c := r.session.Character()

	rendered, err := r.renderer.Render(msg.Text)
	if err != nil {
		rendered = msg.Text + "\n"
	}
	fmt.Fprintln(r.out, characterStyle(c.Color).Render(c.Name))
	fmt.Fprint(r.out, rendered)

	status := r.session.ListenLabel(out.Index)
	if out.XPEarned > 0 {
		status = fmt.Sprintf("+%d XP · %s", out.XPEarned, status)
	}
	fmt.Fprintln(r.out, faint(status))

	if out.XPEarned > 0 {
		r.saveProgress(ctx, events.TypeXPEarned)
	}
	if out.Encouraged {
		fmt.Fprintln(r.out, keyword("Muito bem!"))
	}
	if out.StepComplete {
		r.stepComplete = true
		fmt.Fprintln(r.out, keyword("Passo concluído!")+" "+faint("Type /next to continue."))
	}
}

// advance completes the current step and starts a session on the next.
func (r *lessonREPL) advance(ctx context.Context) error {
	r.session.StopAudio()
	subject, step := r.session.Subject(), r.session.StepIndex()

	done, err := r.session.CompleteStep()
	if err != nil {
		return err
	}
	r.saveProgress(ctx, events.TypeStepCompleted)
	if done {
		r.app.publish(ctx, events.Event{
			Type:      events.TypeSubjectCompleted,
			SubjectID: subject.ID,
			StepIndex: step,
			XP:        r.session.Profile().XP,
		})
		fmt.Fprintf(r.out, "%s %s\n", keyword("Assunto concluído:"), subject.Title)
	}
	return r.begin(ctx)
}

func (r *lessonREPL) saveProgress(ctx context.Context, kind string) {
	p := r.session.Profile()
	if err := r.app.saveProfile(p); err != nil {
		log.Error("Could not save progress", "err", err)
		fmt.Fprintln(r.out, warning("Não foi possível guardar o progresso."))
		return
	}
	r.app.publish(ctx, events.Event{
		Type:      kind,
		SubjectID: r.session.Subject().ID,
		StepIndex: r.session.StepIndex(),
		XP:        p.XP,
	})
}

func audioMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(path))) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	case ".m4a", ".aac":
		return "audio/aac"
	default:
		return "audio/wav"
	}
}

// describeError turns provider failures into something a learner can act on.
func describeError(err error) string {
	switch {
	case resilience.IsQuota(err):
		return "O limite gratuito foi atingido. Tenta outra vez daqui a uns minutos."
	case resilience.IsTransient(err):
		return "O serviço está indisponível. Tenta outra vez."
	case errors.Is(err, context.Canceled):
		return "Cancelado."
	}
	return err.Error()
}
