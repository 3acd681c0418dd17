/*
Copyright 2025 The lmsdeploy authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kube

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// HasIngressController reports whether an ingress controller is
// registered with the cluster, detected through the presence of at
// least one IngressClass.
func (m *Manager) HasIngressController(ctx context.Context) (bool, error) {
	list := &networkingv1.IngressClassList{}
	if err := m.client.List(ctx, list); err != nil {
		return false, err
	}
	return len(list.Items) > 0, nil
}

// IngressAddress returns the load balancer IP or hostname assigned to
// the ingress, or an empty string while the assignment is pending.
func (m *Manager) IngressAddress(ctx context.Context, namespace, name string) (string, error) {
	ing := &networkingv1.Ingress{}
	if err := m.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, ing); err != nil {
		return "", err
	}
	return lbAddress(ing.Status.LoadBalancer.Ingress), nil
}

// ServiceAddress returns the load balancer IP or hostname assigned to
// the service, or an empty string while the assignment is pending.
func (m *Manager) ServiceAddress(ctx context.Context, namespace, name string) (string, error) {
	svc := &corev1.Service{}
	if err := m.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, svc); err != nil {
		return "", err
	}
	return lbAddress(svc.Status.LoadBalancer.Ingress), nil
}

func lbAddress(endpoints []corev1.LoadBalancerIngress) string {
	for _, lb := range endpoints {
		if lb.IP != "" {
			return lb.IP
		}
		if lb.Hostname != "" {
			return lb.Hostname
		}
	}
	return ""
}
