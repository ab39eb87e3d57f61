// Package assets 内嵌页面模板与静态资源（登录页样式、图标），单二进制部署无需额外文件。
package assets

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html static
var files embed.FS

// StaticFS 返回 static/ 子目录，挂载在 /assets 下。
func StaticFS() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates 解析全部页面模板；模板名为文件名（如 login.html）。
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/*.html")
}

func FaviconSVG() []byte {
	b, _ := files.ReadFile("static/favicon.svg")
	return b
}
