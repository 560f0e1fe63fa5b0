package adapter

import (
	"fmt"
	"sort"

	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Registry maps exact, normalized hostnames to adapters. Lookups never fail:
// unknown hosts get the generic adapter.
type Registry struct {
	generic Adapter
	hosts   map[string]Adapter
	named   map[string]Adapter
}

// NewRegistry builds a registry from a hostname table. Hostnames are
// normalized with dom.NormalizeHost.
func NewRegistry(generic Adapter, hosts map[string]Adapter) *Registry {
	r := &Registry{
		generic: generic,
		hosts:   make(map[string]Adapter, len(hosts)),
		named:   map[string]Adapter{generic.Name(): generic},
	}
	for host, a := range hosts {
		r.hosts[dom.NormalizeHost(host)] = a
		r.named[a.Name()] = a
	}
	return r
}

// Default builds the registry of every supported platform from the embedded
// selector table. A selector that fails to compile fails the build.
func Default(opts Options) (*Registry, error) {
	table, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return FromTable(table, opts)
}

// FromTable builds the platform registry over an already compiled table.
func FromTable(table Table, opts Options) (*Registry, error) {
	for _, name := range []string{
		NameWeChat, NameJike, NameDeepSeek, NameWeibo, NameZsxq, NameZhihu,
		NameJuejin, NameCSDN, NameBilibili, NameKuaishou, NameXiaohongshu, NameDouyin,
	} {
		if _, ok := table[name]; !ok {
			return nil, fmt.Errorf("adapter: selector table has no %q section", name)
		}
	}

	wechat := NewWeChat(table.Rules(NameWeChat))
	jike := NewJike(table.Rules(NameJike), opts)
	deepseek := NewDeepSeek(table.Rules(NameDeepSeek), opts)
	weibo := NewWeibo(table.Rules(NameWeibo))
	zsxq := NewZsxq(table.Rules(NameZsxq), opts)
	zhihu := NewZhihu(table.Rules(NameZhihu))
	juejin := NewArticle(NameJuejin, table.Rules(NameJuejin))
	csdn := NewArticle(NameCSDN, table.Rules(NameCSDN))
	bilibili := NewBilibili(table.Rules(NameBilibili))
	kuaishou := NewKuaishou(table.Rules(NameKuaishou))
	xhsRules := table.Rules(NameXiaohongshu)
	xiaohongshu := WithSocial(NewXiaohongshu(xhsRules), NewXiaohongshuSocial(xhsRules))
	douyinRules := table.Rules(NameDouyin)
	douyin := WithSocial(NewDouyin(douyinRules), NewDouyinSocial(douyinRules))

	return NewRegistry(NewGeneric(), map[string]Adapter{
		"mp.weixin.qq.com":   wechat,
		"web.okjike.com":     jike,
		"deepseek.com":       deepseek,
		"chat.deepseek.com":  deepseek,
		"weibo.com":          weibo,
		"m.weibo.cn":         weibo,
		"zsxq.com":           zsxq,
		"wx.zsxq.com":        zsxq,
		"zhihu.com":          zhihu,
		"zhuanlan.zhihu.com": zhihu,
		"juejin.cn":          juejin,
		"blog.csdn.net":      csdn,
		"bilibili.com":       bilibili,
		"kuaishou.com":       kuaishou,
		"xiaohongshu.com":    xiaohongshu,
		"douyin.com":         douyin,
	}), nil
}

// Resolve returns the adapter registered for hostname, or the generic one.
// Matching is exact; callers normalize subdomains themselves.
func (r *Registry) Resolve(hostname string) Adapter {
	if a, ok := r.hosts[dom.NormalizeHost(hostname)]; ok {
		return a
	}
	return r.generic
}

// Generic returns the fallback adapter.
func (r *Registry) Generic() Adapter { return r.generic }

// Named returns the adapter with the given name.
func (r *Registry) Named(name string) (Adapter, bool) {
	a, ok := r.named[name]
	return a, ok
}

// Entries lists the hostname table sorted by hostname.
func (r *Registry) Entries() []models.AdapterInfo {
	out := make([]models.AdapterInfo, 0, len(r.hosts))
	for host, a := range r.hosts {
		out = append(out, models.AdapterInfo{Hostname: host, Adapter: a.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}
