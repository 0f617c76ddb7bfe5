package steps

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"model-retrain-service/internal/config"
	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

const (
	containerName = "step"
	jobNameLabel  = "job-name"
	stepLabel     = "retrain.step"
	managedBy     = "model-retrain-service"
)

// ============================================================================
// Job client
// ============================================================================

// JobClient is the slice of the Kubernetes API the step runner needs.
type JobClient interface {
	CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error)
	GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error)
	DeleteJob(ctx context.Context, namespace, name string) error
	FindPods(ctx context.Context, namespace, selector string) ([]corev1.Pod, error)
	Logs(ctx context.Context, namespace, pod, container string) ([]byte, error)
}

type jobClient struct {
	client kubernetes.Interface
}

// NewJobClient builds a clientset from in-cluster config, an explicit
// kubeconfig, or ~/.kube/config, in that order.
func NewJobClient(cfg *config.KubernetesConfig) (JobClient, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return WrapClientset(client), nil
}

func WrapClientset(c kubernetes.Interface) JobClient {
	return &jobClient{client: c}
}

func (k *jobClient) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
}

func (k *jobClient) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (k *jobClient) DeleteJob(ctx context.Context, namespace, name string) error {
	background := metav1.DeletePropagationBackground
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &background,
	})
}

func (k *jobClient) FindPods(ctx context.Context, namespace, selector string) ([]corev1.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *jobClient) Logs(ctx context.Context, namespace, pod, container string) ([]byte, error) {
	stream, err := k.client.CoreV1().
		Pods(namespace).
		GetLogs(pod, &corev1.PodLogOptions{Container: container}).
		Stream(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return io.ReadAll(stream)
}

// ============================================================================
// Runner
// ============================================================================

// KubeRunner runs each step as a one-shot batch/v1 Job and reads the metrics
// line from the pod log.
type KubeRunner struct {
	client    JobClient
	namespace string
	image     string
	command   []string
	timeout   time.Duration
	interval  time.Duration
}

var _ ports.StepRunner = (*KubeRunner)(nil)

func NewKubeRunner(client JobClient, cfg *config.KubernetesConfig, command string, timeout time.Duration) (*KubeRunner, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("step image is required for the kubernetes runner")
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &KubeRunner{
		client:    client,
		namespace: namespace,
		image:     cfg.Image,
		command:   strings.Fields(command),
		timeout:   timeout,
		interval:  interval,
	}, nil
}

func (r *KubeRunner) Run(ctx context.Context, step domain.Step) (*domain.StepResult, error) {
	if !step.Name.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStep, step.Name)
	}

	job := r.buildJob(step)
	logger := log.WithFields(log.Fields{
		"step":      step.String(),
		"job":       job.Name,
		"namespace": r.namespace,
	})

	if _, err := r.client.CreateJob(ctx, r.namespace, job); err != nil {
		return nil, fmt.Errorf("create job for %s: %w", step, err)
	}
	logger.Info("step job created")

	defer func() {
		if err := r.client.DeleteJob(context.WithoutCancel(ctx), r.namespace, job.Name); err != nil {
			logger.WithError(err).Warn("failed to delete step job")
		}
	}()

	if err := r.wait(ctx, job.Name); err != nil {
		return nil, fmt.Errorf("step %s: %w", step, err)
	}

	out, err := r.podLogs(ctx, job.Name)
	if err != nil {
		return nil, fmt.Errorf("read logs of %s: %w", step, err)
	}
	logger.Debug("step job succeeded")
	return ParseOutput(out)
}

func (r *KubeRunner) buildJob(step domain.Step) *batchv1.Job {
	name := fmt.Sprintf("retrain-%s-%s", step.Name, uuid.NewString()[:8])
	labels := map[string]string{
		"app.kubernetes.io/managed-by": managedBy,
		stepLabel:                      string(step.Name),
	}
	backoff := int32(0)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:    containerName,
						Image:   r.image,
						Command: r.command,
						Args:    step.Args(),
						Env: []corev1.EnvVar{
							{Name: "EXPERIMENT", Value: step.Experiment},
						},
					}},
				},
			},
		},
	}
}

// wait polls the Job until it finishes. A non-positive timeout waits until
// ctx is done, matching ExecRunner.
func (r *KubeRunner) wait(ctx context.Context, name string) error {
	done := func(ctx context.Context) (bool, error) {
		job, err := r.client.GetJob(ctx, r.namespace, name)
		if err != nil {
			return false, err
		}
		if job.Status.Succeeded > 0 {
			return true, nil
		}
		if job.Status.Failed > 0 {
			return false, fmt.Errorf("job %s failed: %s", name, failureMessage(job))
		}
		return false, nil
	}
	if r.timeout <= 0 {
		return wait.PollUntilContextCancel(ctx, r.interval, true, done)
	}
	return wait.PollUntilContextTimeout(ctx, r.interval, r.timeout, true, done)
}

func (r *KubeRunner) podLogs(ctx context.Context, name string) ([]byte, error) {
	pods, err := r.client.FindPods(ctx, r.namespace, jobNameLabel+"="+name)
	if err != nil {
		return nil, err
	}
	for _, pod := range pods {
		if pod.Status.Phase == corev1.PodSucceeded {
			return r.client.Logs(ctx, r.namespace, pod.Name, containerName)
		}
	}
	return nil, fmt.Errorf("no succeeded pod for job %s", name)
}

func failureMessage(job *batchv1.Job) string {
	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobFailed && c.Status == corev1.ConditionTrue {
			return c.Reason + ": " + c.Message
		}
	}
	return "unknown reason"
}
