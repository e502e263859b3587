package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/orchestration"
	"github.com/spboyer/aemforge/internal/spinner"
	"github.com/spboyer/aemforge/internal/utils"
	"github.com/spboyer/aemforge/internal/wizard"
	"github.com/spboyer/aemforge/internal/workspace"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	componentType string
	fields        []string
	imageURL      string
	appID         string
	packageName   string
	folder        string
	group         string
	namespace     string
	noClientlibs  bool
	noValidate    bool
	secondary     bool
	interactive   bool
	engine        string
	timeout       time.Duration

	output outputOptions
}

func newGenerateCommand(a *app) *cobra.Command {
	o := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate an AEM component from a description",
		Long: `Generate an AEM component from a natural-language description.

The job runs in this process and the command waits for it: requirements are
extracted, the optional design image is analyzed, the component is generated
and finally scored. Fields given with --field are passed to the generator as
authoring fields (name:type, a trailing * marks a field required).

Exit code 1 means the component was generated but failed validation.`,
		Example: `  aemforge generate "Hero banner with title, subtitle and a CTA button"
  aemforge generate -i
  aemforge generate "Product card" --field title:textfield* --field image:fileupload --export
  aemforge generate "Teaser" --engine scripted --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, o, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.componentType, "type", "t", "", "Component type (hero, card, teaser, ...)")
	f.StringArrayVar(&o.fields, "field", nil, "Authoring field as name:type, * for required (repeatable)")
	f.StringVar(&o.imageURL, "image", "", "URL or data URL of a design image to analyze")
	f.StringVar(&o.appID, "app-id", "", "AEM application id (defaults to the detected project's app)")
	f.StringVar(&o.packageName, "package", "", "Java package of the Sling Model")
	f.StringVar(&o.folder, "folder", "", "Sub-folder below components/")
	f.StringVar(&o.group, "group", "", "Component group shown in the authoring UI")
	f.StringVar(&o.namespace, "namespace", "", "Project namespace")
	f.BoolVar(&o.noClientlibs, "no-clientlibs", false, "Do not generate CSS/JS clientlibs")
	f.BoolVar(&o.noValidate, "no-validate", false, "Skip scoring the generated component")
	f.BoolVar(&o.secondary, "secondary", false, "Merge the rubric score with a secondary review by the generator")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "Ask for the request interactively")
	f.StringVar(&o.engine, "engine", "", "Generator engine: copilot, ollama or scripted (overrides config)")
	f.DurationVar(&o.timeout, "timeout", 0, "Maximum run time of the job (overrides config)")
	o.output.addFlags(cmd)

	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, o *generateOptions, args []string) error {
	if err := checkFormat(o.output.format, resultFormats); err != nil {
		return err
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	req, err := o.request(cmd, a, args)
	if err != nil {
		return err
	}

	if o.timeout > 0 {
		cfg.Jobs.Timeout = o.timeout
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rt, err := newServices(ctx, cfg, serviceOptions{generator: true, engine: o.engine})
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck

	unsubscribe := showProgress(cmd, rt.orch)
	id, err := rt.orch.Submit(ctx, req)
	if err != nil {
		unsubscribe()
		return err
	}
	waitErr := rt.orch.WaitContext(ctx)
	unsubscribe()
	if waitErr != nil {
		return fmt.Errorf("interrupted while waiting for job %s: %w", id, waitErr)
	}

	// the job has finished; its records outlive a canceled command context
	readCtx := context.WithoutCancel(ctx)
	res, err := rt.orch.Result(readCtx, id)
	if err != nil {
		return err
	}
	if res == nil {
		job, err := rt.orch.Status(readCtx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("generation failed at %d%%: %s", job.Progress, job.CurrentStep)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Job %s completed\n", id) //nolint:errcheck

	return o.output.emit(cmd, a, res)
}

// request assembles the generation request from flags, arguments and,
// with --interactive, the wizard.
func (o *generateOptions) request(cmd *cobra.Command, a *app, args []string) (*models.GenerationRequest, error) {
	appID := o.appID
	if appID == "" {
		if project, err := workspace.DetectProject(a.dir); err == nil {
			appID = project.DefaultAppID()
		}
	}

	var req *models.GenerationRequest
	if o.interactive {
		var err error
		req, err = wizard.Run(cmd.InOrStdin(), cmd.ErrOrStderr(), wizard.Answers{
			Description:   strings.Join(args, " "),
			ComponentType: o.componentType,
			Fields:        strings.Join(o.fields, ","),
			ImageURL:      o.imageURL,
			AppID:         appID,
			Clientlibs:    !o.noClientlibs,
		})
		if err != nil {
			return nil, err
		}
	} else {
		fields, err := wizard.ParseFields(strings.Join(o.fields, ","))
		if err != nil {
			return nil, err
		}
		req = &models.GenerationRequest{
			Description:   strings.Join(args, " "),
			ComponentType: o.componentType,
			Fields:        fields,
			ImageURL:      o.imageURL,
			Options:       models.GenerationOptions{AppID: appID},
		}
		if o.noClientlibs {
			req.Options.IncludeClientlibs = utils.Ptr(false)
		}
		if cmd.Flags().Changed("secondary") {
			req.Options.SecondaryOpinion = utils.Ptr(o.secondary)
		}
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: pass a description or use --interactive", err)
	}
	req.ProjectNamespace = o.namespace
	req.ComponentGroup = o.group
	req.Options.PackageName = o.packageName
	req.Options.ComponentFolder = o.folder
	if o.noValidate {
		req.Options.Validate = utils.Ptr(false)
	}
	return req, nil
}

// showProgress renders job progress on stderr: a spinner on terminals,
// one line per step otherwise.
func showProgress(cmd *cobra.Command, orch *orchestration.Orchestrator) (stop func()) {
	w := cmd.ErrOrStderr()
	if spinner.IsTerminal(w) {
		s := spinner.Start(w, orchestration.StepQueued)
		unsubscribe := orch.OnProgress(func(e orchestration.ProgressEvent) {
			s.Update(fmt.Sprintf("[%3d%%] %s", e.Progress, e.Step))
		})
		return func() {
			unsubscribe()
			s.Stop()
		}
	}
	return orch.OnProgress(func(e orchestration.ProgressEvent) {
		fmt.Fprintf(w, "[%3d%%] %s\n", e.Progress, e.Step) //nolint:errcheck
	})
}
